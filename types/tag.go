package types

import (
	"fmt"
	"strings"
)

// ReleaseTagType is the tag type reserved for release membership.
const ReleaseTagType = "release"

// Tag labels a test outcome for cross-cutting grouping, e.g. ("feature", "Checkout").
type Tag struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
}

// NewTag creates a tag with the given type and name.
func NewTag(tagType, name string) Tag {
	return Tag{Type: tagType, Name: name}
}

// ParseTag parses the "type:name" form produced by String. A value without
// a colon is treated as a tag of type "tag".
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tag{}, fmt.Errorf("empty tag")
	}
	tagType, name, ok := strings.Cut(s, ":")
	if !ok {
		return Tag{Type: "tag", Name: s}, nil
	}
	if tagType == "" || name == "" {
		return Tag{}, fmt.Errorf("invalid tag %q", s)
	}
	return Tag{Type: tagType, Name: name}, nil
}

func (t Tag) String() string {
	return t.Type + ":" + t.Name
}

// Key is the normalized identity of a tag used for deduplication.
func (t Tag) Key() string {
	return strings.ToLower(t.Type) + ":" + strings.ToLower(t.Name)
}

// HasName reports whether the tag's name matches, ignoring case.
func (t Tag) HasName(name string) bool {
	return strings.EqualFold(t.Name, name)
}

// HasType reports whether the tag's type matches, ignoring case.
func (t Tag) HasType(tagType string) bool {
	return strings.EqualFold(t.Type, tagType)
}

// IsRelease reports whether the tag marks release membership.
func (t Tag) IsRelease() bool {
	return t.HasType(ReleaseTagType)
}
