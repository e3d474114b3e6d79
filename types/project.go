package types

import "fmt"

// ProjectConfig describes the project structure that test outcomes are rolled
// up against: the ordered requirement types, the requirement tree and the
// release tree.
type ProjectConfig struct {
	Name             string              `yaml:"name,omitempty"`
	RequirementTypes []string            `yaml:"requirement_types,omitempty"`
	Requirements     []RequirementConfig `yaml:"requirements,omitempty"`
	Releases         []ReleaseConfig     `yaml:"releases,omitempty"`
}

// RequirementConfig is one node of the configured requirement tree.
type RequirementConfig struct {
	Name        string              `yaml:"name"`
	Type        string              `yaml:"type,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Children    []RequirementConfig `yaml:"children,omitempty"`
}

// ReleaseConfig is one configured release. Releases form a tree through
// their Parent reference, e.g. "Sprint1" with parent "R1".
type ReleaseConfig struct {
	Name        string `yaml:"name"`
	Parent      string `yaml:"parent,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ReleasePath resolves the chain of release names from the root release down
// to the named release, following Parent references.
func ReleasePath(name string, releases map[string]ReleaseConfig) ([]string, error) {
	visited := make(map[string]bool)
	var path []string
	child, current := "", name
	for current != "" {
		if visited[current] {
			return nil, fmt.Errorf("circular parent reference detected at release %q", current)
		}
		visited[current] = true

		rel, ok := releases[current]
		if !ok {
			if child == "" {
				return nil, fmt.Errorf("release %q is not declared", name)
			}
			return nil, fmt.Errorf("release %q has non-existent parent %q", child, current)
		}
		path = append([]string{rel.Name}, path...)
		child, current = current, rel.Parent
	}
	return path, nil
}
