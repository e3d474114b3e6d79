package requirements

import (
	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Node is the aggregated result of one requirement or release. Its test
// outcomes are the union of the outcomes matching its own name and those of
// every descendant, each counted once.
type Node struct {
	name        string
	label       string
	typ         string
	description string
	direct      *outcomes.Collection
	aggregate   *outcomes.Collection
	children    []*Node
}

func newNode(name, label, typ, description string, direct *outcomes.Collection, children []*Node) *Node {
	parts := make([]*outcomes.Collection, 0, len(children)+1)
	parts = append(parts, direct)
	for _, c := range children {
		parts = append(parts, c.aggregate)
	}
	return &Node{
		name:        name,
		label:       label,
		typ:         typ,
		description: description,
		direct:      direct,
		aggregate:   outcomes.Union(parts...),
		children:    children,
	}
}

// Name is the node's full name. For nested releases it is the slash-joined
// path, e.g. "R1/Sprint1".
func (n *Node) Name() string { return n.name }

// Label is the last segment of the name.
func (n *Node) Label() string { return n.label }

func (n *Node) Type() string { return n.typ }

func (n *Node) Description() string { return n.description }

// DirectOutcomes are the outcomes tagged with this node's name only.
func (n *Node) DirectOutcomes() *outcomes.Collection { return n.direct }

// TestOutcomes are the deduplicated outcomes of this node and its descendants.
func (n *Node) TestOutcomes() *outcomes.Collection { return n.aggregate }

func (n *Node) Result() types.Result { return n.aggregate.Result() }

func (n *Node) Counts() outcomes.Counts { return n.aggregate.Counts() }

func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

func (n *Node) Children() []*Node {
	kids := make([]*Node, len(n.children))
	copy(kids, n.children)
	return kids
}

// Walk visits n and its descendants depth-first. Returning false from the
// visitor skips the node's children.
func (n *Node) Walk(visitor func(node *Node, depth int) bool) {
	n.walk(visitor, 0)
}

func (n *Node) walk(visitor func(*Node, int) bool, depth int) {
	if !visitor(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(visitor, depth+1)
	}
}

func walkAll(roots []*Node, visitor func(*Node, int) bool) {
	for _, r := range roots {
		r.walk(visitor, 0)
	}
}
