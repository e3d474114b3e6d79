package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TestOutcome is the finished result of one test. Its result is derived from
// its step tree and cached at construction; the outcome never changes after.
type TestOutcome struct {
	title     string
	identity  string
	steps     *StepOutcome
	tags      []Tag
	result    Result
	startTime time.Time
	duration  time.Duration
}

// NewTestOutcome builds a test outcome around a finished root step group. An
// empty identity falls back to the title; duplicate tags are dropped.
func NewTestOutcome(title, identity string, steps *StepOutcome, tags []Tag, startTime time.Time, duration time.Duration) *TestOutcome {
	if steps == nil {
		steps = NewStepGroup(title, nil, ResultSuccess, nil, 0)
	}
	if identity == "" {
		identity = title
	}
	return &TestOutcome{
		title:     title,
		identity:  identity,
		steps:     steps,
		tags:      dedupTags(tags),
		result:    steps.Result(),
		startTime: startTime,
		duration:  duration,
	}
}

func dedupTags(tags []Tag) []Tag {
	seen := make(map[string]bool, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		out = append(out, t)
	}
	return out
}

func (o *TestOutcome) Title() string           { return o.title }
func (o *TestOutcome) Identity() string        { return o.identity }
func (o *TestOutcome) Steps() *StepOutcome     { return o.steps }
func (o *TestOutcome) Result() Result          { return o.result }
func (o *TestOutcome) StartTime() time.Time    { return o.startTime }
func (o *TestOutcome) Duration() time.Duration { return o.duration }

// Tags returns the outcome's tags in declaration order.
func (o *TestOutcome) Tags() []Tag {
	tags := make([]Tag, len(o.tags))
	copy(tags, o.tags)
	return tags
}

// HasTag reports whether any tag carries the given name, ignoring case.
func (o *TestOutcome) HasTag(name string) bool {
	for _, t := range o.tags {
		if t.HasName(name) {
			return true
		}
	}
	return false
}

// HasTagOf reports whether the outcome carries exactly this tag.
func (o *TestOutcome) HasTagOf(tag Tag) bool {
	for _, t := range o.tags {
		if t.Key() == tag.Key() {
			return true
		}
	}
	return false
}

// HasTagType reports whether any tag has the given type, ignoring case.
func (o *TestOutcome) HasTagType(tagType string) bool {
	for _, t := range o.tags {
		if t.HasType(tagType) {
			return true
		}
	}
	return false
}

// TagsOfType returns the tags of the given type.
func (o *TestOutcome) TagsOfType(tagType string) []Tag {
	var tags []Tag
	for _, t := range o.tags {
		if t.HasType(tagType) {
			tags = append(tags, t)
		}
	}
	return tags
}

// StepCount returns the number of leaf steps executed by the test.
func (o *TestOutcome) StepCount() int {
	return o.steps.LeafCount()
}

func (o *TestOutcome) String() string {
	return o.title + " [" + strings.ToUpper(o.result.String()) + "]"
}

type testOutcomeWire struct {
	Title     string        `json:"title"`
	Identity  string        `json:"identity"`
	Result    Result        `json:"result"`
	Tags      []Tag         `json:"tags,omitempty"`
	StartTime time.Time     `json:"start_time,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Steps     *StepOutcome  `json:"steps"`
}

func (o *TestOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(testOutcomeWire{
		Title:     o.title,
		Identity:  o.identity,
		Result:    o.result,
		Tags:      o.tags,
		StartTime: o.startTime,
		Duration:  o.duration,
		Steps:     o.steps,
	})
}

// UnmarshalJSON restores an outcome. The stored result is informational only:
// the result is always re-derived from the step tree.
func (o *TestOutcome) UnmarshalJSON(b []byte) error {
	var w testOutcomeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Title == "" && w.Identity == "" {
		return errors.New("test outcome requires a title or an identity")
	}
	title := w.Title
	if title == "" {
		title = w.Identity
	}
	*o = *NewTestOutcome(title, w.Identity, w.Steps, w.Tags, w.StartTime, w.Duration)
	return nil
}
