package requirements

import (
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ReleaseSeparator splits nested release names in release tags, e.g. "R1/Sprint1".
const ReleaseSeparator = "/"

// ReleaseOutcomes is the rollup of a test outcome collection against the
// release tree.
type ReleaseOutcomes struct {
	roots    []*Node
	inferred bool
}

// BuildReleases rolls tests up against the configured releases. With no
// configured releases the tree is inferred from the outcomes' release tags.
// A release matches outcomes tagged with its full path or its own name.
func BuildReleases(releases []types.ReleaseConfig, tests *outcomes.Collection) (*ReleaseOutcomes, error) {
	if tests == nil {
		tests = outcomes.Empty()
	}
	index := newTagIndex(tests, releaseTag, releaseKey)
	if len(releases) == 0 {
		return &ReleaseOutcomes{roots: inferReleases(tests, index), inferred: true}, nil
	}

	byName := make(map[string]types.ReleaseConfig, len(releases))
	children := make(map[string][]types.ReleaseConfig)
	var roots []types.ReleaseConfig
	for _, rc := range releases {
		if rc.Name == "" {
			return nil, fmt.Errorf("release with empty name")
		}
		if _, dup := byName[rc.Name]; dup {
			return nil, fmt.Errorf("duplicate release %q", rc.Name)
		}
		byName[rc.Name] = rc
		if rc.Parent == "" {
			roots = append(roots, rc)
		} else {
			children[rc.Parent] = append(children[rc.Parent], rc)
		}
	}
	for _, rc := range releases {
		if _, err := types.ReleasePath(rc.Name, byName); err != nil {
			return nil, err
		}
	}

	var build func(rc types.ReleaseConfig, parentPath string) *Node
	build = func(rc types.ReleaseConfig, parentPath string) *Node {
		path := joinRelease(parentPath, rc.Name)
		var kids []*Node
		for _, child := range children[rc.Name] {
			kids = append(kids, build(child, path))
		}
		return newNode(path, rc.Name, types.ReleaseTagType, rc.Description, index.match(path, rc.Name), kids)
	}

	ro := &ReleaseOutcomes{}
	for _, rc := range roots {
		ro.roots = append(ro.roots, build(rc, ""))
	}
	return ro, nil
}

type releaseTrie struct {
	label    string
	path     string
	order    []string
	children map[string]*releaseTrie
}

func (t *releaseTrie) child(label string) *releaseTrie {
	key := strings.ToLower(label)
	if c, ok := t.children[key]; ok {
		return c
	}
	c := &releaseTrie{label: label, path: joinRelease(t.path, label), children: make(map[string]*releaseTrie)}
	t.children[key] = c
	t.order = append(t.order, key)
	return c
}

func inferReleases(tests *outcomes.Collection, index tagIndex) []*Node {
	root := &releaseTrie{children: make(map[string]*releaseTrie)}
	for _, tag := range tests.TagsOfType(types.ReleaseTagType) {
		node := root
		for _, segment := range releaseSegments(tag.Name) {
			node = node.child(segment)
		}
	}

	var build func(t *releaseTrie) *Node
	build = func(t *releaseTrie) *Node {
		var kids []*Node
		for _, key := range t.order {
			kids = append(kids, build(t.children[key]))
		}
		return newNode(t.path, t.label, types.ReleaseTagType, "", index.match(t.path), kids)
	}

	var nodes []*Node
	for _, key := range root.order {
		nodes = append(nodes, build(root.children[key]))
	}
	return nodes
}

// releaseSegments splits a release tag into its trimmed, non-empty names.
func releaseSegments(name string) []string {
	var segments []string
	for _, segment := range strings.Split(name, ReleaseSeparator) {
		if segment = strings.TrimSpace(segment); segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// normalizeRelease makes "R1 / Sprint1" and "R1/Sprint1/" the same release.
func normalizeRelease(name string) string {
	return strings.Join(releaseSegments(name), ReleaseSeparator)
}

func joinRelease(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + ReleaseSeparator + name
}

// Releases returns the top-level releases.
func (ro *ReleaseOutcomes) Releases() []*Node {
	return append([]*Node(nil), ro.roots...)
}

// Inferred reports whether the release tree came from release tags rather
// than configuration.
func (ro *ReleaseOutcomes) Inferred() bool { return ro.inferred }

func (ro *ReleaseOutcomes) IsEmpty() bool { return len(ro.roots) == 0 }

// Walk visits every release depth-first.
func (ro *ReleaseOutcomes) Walk(visitor func(node *Node, depth int) bool) {
	walkAll(ro.roots, visitor)
}

// Flatten returns every release in depth-first order.
func (ro *ReleaseOutcomes) Flatten() []*Node {
	var nodes []*Node
	ro.Walk(func(n *Node, _ int) bool {
		nodes = append(nodes, n)
		return true
	})
	return nodes
}

// Find returns the release with the given full name, ignoring case.
func (ro *ReleaseOutcomes) Find(name string) (*Node, bool) {
	for _, n := range ro.Flatten() {
		if strings.EqualFold(n.Name(), name) {
			return n, true
		}
	}
	return nil, false
}
