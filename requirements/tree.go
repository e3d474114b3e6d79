package requirements

import (
	"strings"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// DefaultTypes names requirement levels by depth when neither the project
// nor the tree itself says what they are. Levels below the last reuse it.
var DefaultTypes = []string{"capability", "feature", "story"}

// Requirement is one node of the project's requirement tree. It never owns
// test outcomes; they are associated with it through tags carrying its name.
type Requirement struct {
	Name        string
	Type        string
	Description string
	Children    []*Requirement
}

// Tree is a requirement hierarchy together with its ordered level types.
type Tree struct {
	Types []string
	Roots []*Requirement
}

// FromConfig builds a requirement tree from project configuration.
func FromConfig(cfg types.ProjectConfig) *Tree {
	tree := &Tree{Types: append([]string(nil), cfg.RequirementTypes...)}
	for _, rc := range cfg.Requirements {
		tree.Roots = append(tree.Roots, fromConfig(rc))
	}
	return tree
}

func fromConfig(rc types.RequirementConfig) *Requirement {
	req := &Requirement{Name: rc.Name, Type: rc.Type, Description: rc.Description}
	for _, child := range rc.Children {
		req.Children = append(req.Children, fromConfig(child))
	}
	return req
}

// IsEmpty reports whether the tree has no requirements.
func (t *Tree) IsEmpty() bool {
	return t == nil || len(t.Roots) == 0
}

// HasTypes reports whether requirement types were declared.
func (t *Tree) HasTypes() bool {
	return t != nil && len(t.Types) > 0
}

// LevelTypes returns the requirement type of each tree level, by depth.
// Declared types win; otherwise each level takes the first explicit type
// found at that depth, falling back to DefaultTypes.
func (t *Tree) LevelTypes() []string {
	if t.HasTypes() {
		return append([]string(nil), t.Types...)
	}
	if t.IsEmpty() {
		return nil
	}

	var levels []string
	var visit func(reqs []*Requirement, depth int)
	visit = func(reqs []*Requirement, depth int) {
		if len(reqs) == 0 {
			return
		}
		if depth == len(levels) {
			levels = append(levels, "")
		}
		for _, r := range reqs {
			if levels[depth] == "" && r.Type != "" {
				levels[depth] = r.Type
			}
			visit(r.Children, depth+1)
		}
	}
	visit(t.Roots, 0)

	for depth, typ := range levels {
		if typ == "" {
			levels[depth] = defaultType(depth)
		}
	}
	return levels
}

func defaultType(depth int) string {
	if depth < len(DefaultTypes) {
		return DefaultTypes[depth]
	}
	return DefaultTypes[len(DefaultTypes)-1]
}

// typeAt resolves the type of a requirement at depth that has no explicit type.
func typeAt(levels []string, depth int) string {
	if len(levels) == 0 {
		return defaultType(depth)
	}
	if depth < len(levels) {
		return levels[depth]
	}
	return levels[len(levels)-1]
}

func dedupFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := strings.ToLower(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
