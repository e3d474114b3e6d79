package requirements

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Mode tells callers how requirement outcomes were grouped.
type Mode int

const (
	// ModeHierarchy rolls outcomes up through the requirement tree.
	ModeHierarchy Mode = iota
	// ModeEmpty means requirement types were declared but no requirements
	// exist; there are no nodes.
	ModeEmpty
	// ModeFlatTagTypes means no types or requirements were declared and
	// outcomes are grouped into one flat node per tag, by tag type.
	ModeFlatTagTypes
)

func (m Mode) String() string {
	switch m {
	case ModeHierarchy:
		return "hierarchy"
	case ModeEmpty:
		return "empty"
	case ModeFlatTagTypes:
		return "flat-tag-types"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type Option func(*builder)

// WithLogger sets the logger used to report the grouping mode.
func WithLogger(l log.Logger) Option {
	return func(b *builder) {
		b.log = l
	}
}

type builder struct {
	log log.Logger
}

func newBuilder(opts []Option) *builder {
	b := &builder{log: log.Root()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RequirementsOutcomes is the rollup of a test outcome collection against a
// requirement tree. It is immutable and safe for concurrent queries.
type RequirementsOutcomes struct {
	mode  Mode
	types []string
	roots []*Node
	tests *outcomes.Collection
	tree  *Tree
	opts  []Option
}

// Build rolls tests up against tree. The tag index is built once for the
// whole pass.
func Build(tree *Tree, tests *outcomes.Collection, opts ...Option) *RequirementsOutcomes {
	b := newBuilder(opts)
	if tests == nil {
		tests = outcomes.Empty()
	}
	ro := &RequirementsOutcomes{tree: tree, tests: tests, opts: opts}

	switch {
	case !tree.IsEmpty():
		ro.mode = ModeHierarchy
		levels := tree.LevelTypes()
		ro.types = dedupFold(levels)
		index := newTagIndex(tests, requirementTag, requirementKey)
		for _, r := range tree.Roots {
			ro.roots = append(ro.roots, buildRequirement(r, 0, levels, index))
		}
	case tree.HasTypes():
		ro.mode = ModeEmpty
		ro.types = dedupFold(tree.Types)
		b.log.Info("No requirements declared, requirement rollup is empty", "types", strings.Join(ro.types, ","))
	default:
		ro.mode = ModeFlatTagTypes
		ro.roots, ro.types = flatTagTypes(tests)
		b.log.Warn("No requirement types declared, grouping test outcomes by tag type", "tag_types", strings.Join(ro.types, ","))
	}
	return ro
}

func buildRequirement(r *Requirement, depth int, levels []string, index tagIndex) *Node {
	children := make([]*Node, 0, len(r.Children))
	for _, c := range r.Children {
		children = append(children, buildRequirement(c, depth+1, levels, index))
	}
	typ := r.Type
	if typ == "" {
		typ = typeAt(levels, depth)
	}
	return newNode(r.Name, r.Name, typ, r.Description, index.match(r.Name), children)
}

func flatTagTypes(tests *outcomes.Collection) ([]*Node, []string) {
	var roots []*Node
	var tagTypes []string
	for _, tagType := range tests.TagTypes() {
		if strings.EqualFold(tagType, types.ReleaseTagType) {
			continue
		}
		tagTypes = append(tagTypes, tagType)
		for _, tag := range tests.TagsOfType(tagType) {
			roots = append(roots, newNode(tag.Name, tag.Name, tagType, "", tests.WithTagOf(tag), nil))
		}
	}
	return roots, tagTypes
}

func (ro *RequirementsOutcomes) Mode() Mode { return ro.mode }

// Types returns the requirement types, highest level first.
func (ro *RequirementsOutcomes) Types() []string {
	return append([]string(nil), ro.types...)
}

// Outcomes returns the top-level requirement nodes.
func (ro *RequirementsOutcomes) Outcomes() []*Node {
	return append([]*Node(nil), ro.roots...)
}

// Walk visits every requirement node depth-first.
func (ro *RequirementsOutcomes) Walk(visitor func(node *Node, depth int) bool) {
	walkAll(ro.roots, visitor)
}

// Flatten returns every requirement node in depth-first order.
func (ro *RequirementsOutcomes) Flatten() []*Node {
	var nodes []*Node
	ro.Walk(func(n *Node, _ int) bool {
		nodes = append(nodes, n)
		return true
	})
	return nodes
}

// OfType returns the requirement nodes of the given type at any depth.
func (ro *RequirementsOutcomes) OfType(reqType string) []*Node {
	var nodes []*Node
	ro.Walk(func(n *Node, _ int) bool {
		if strings.EqualFold(n.Type(), reqType) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// Find returns the first node with the given name, ignoring case.
func (ro *RequirementsOutcomes) Find(name string) (*Node, bool) {
	var found *Node
	ro.Walk(func(n *Node, _ int) bool {
		if found == nil && strings.EqualFold(n.Name(), name) {
			found = n
		}
		return found == nil
	})
	return found, found != nil
}

// TestOutcomes returns every test outcome the rollup was built from,
// whether or not a requirement matched it.
func (ro *RequirementsOutcomes) TestOutcomes() *outcomes.Collection {
	return ro.tests
}

func (ro *RequirementsOutcomes) Counts() outcomes.Counts {
	return ro.tests.Counts()
}

func (ro *RequirementsOutcomes) Result() types.Result {
	return ro.tests.Result()
}

// CountsByType returns, for each requirement type, the counts of the
// distinct outcomes covered by requirements of that type.
func (ro *RequirementsOutcomes) CountsByType() map[string]outcomes.Counts {
	counts := make(map[string]outcomes.Counts, len(ro.types))
	for _, t := range ro.types {
		var parts []*outcomes.Collection
		for _, n := range ro.OfType(t) {
			parts = append(parts, n.TestOutcomes())
		}
		counts[t] = outcomes.Union(parts...).Counts()
	}
	return counts
}

// TagTypeCounts returns the outcome counts for every tag type in use.
func (ro *RequirementsOutcomes) TagTypeCounts() map[string]outcomes.Counts {
	tagTypes := ro.tests.TagTypes()
	counts := make(map[string]outcomes.Counts, len(tagTypes))
	for _, t := range tagTypes {
		counts[t] = ro.tests.WithTagType(t).Counts()
	}
	return counts
}

// ForRelease rolls up only the outcomes belonging to release against the
// same requirement tree.
func (ro *RequirementsOutcomes) ForRelease(release *Node) *RequirementsOutcomes {
	return Build(ro.tree, release.TestOutcomes(), ro.opts...)
}
