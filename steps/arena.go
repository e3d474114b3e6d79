package steps

import (
	"time"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const noNode = -1

// node is the mutable form of a step while its test is running. For a leaf,
// result is the step's own result; for a group it is the explicit result
// (ResultSuccess when none was given). derived always holds the effective
// result and is kept current for every ancestor as results change.
type node struct {
	name     string
	kind     types.StepKind
	result   types.Result
	derived  types.Result
	err      *types.StepError
	parent   int
	children []int
	start    time.Time
	duration time.Duration
	closed   bool
}

// arena holds the step tree of one running test as index-linked nodes. It is
// owned by a single tracker and frozen into immutable StepOutcomes when the
// test finishes.
type arena struct {
	nodes []node
	now   func() time.Time
}

func newArena(rootName string, now func() time.Time) *arena {
	a := &arena{now: now}
	a.nodes = append(a.nodes, node{
		name:   rootName,
		kind:   types.StepGroup,
		parent: noNode,
		start:  now(),
	})
	return a
}

// add appends a new node under parent and returns its index.
func (a *arena) add(parent int, name string, kind types.StepKind, result types.Result) int {
	idx := len(a.nodes)
	a.nodes = append(a.nodes, node{
		name:    name,
		kind:    kind,
		result:  result,
		derived: result,
		parent:  parent,
		start:   a.now(),
	})
	a.nodes[parent].children = append(a.nodes[parent].children, idx)
	a.propagate(parent)
	return idx
}

// setResult overwrites a node's own result and recomputes every ancestor.
func (a *arena) setResult(idx int, result types.Result) {
	a.nodes[idx].result = result
	a.refresh(idx)
	a.propagate(a.nodes[idx].parent)
}

// setError records a captured cause on a node, keeping the first one.
func (a *arena) setError(idx int, err *types.StepError) {
	if a.nodes[idx].err == nil {
		a.nodes[idx].err = err
	}
}

func (a *arena) close(idx int) {
	n := &a.nodes[idx]
	if n.closed {
		return
	}
	n.closed = true
	n.duration = a.now().Sub(n.start)
}

func (a *arena) refresh(idx int) {
	n := &a.nodes[idx]
	if n.kind == types.StepLeaf {
		n.derived = n.result
		return
	}
	derived := n.result
	for _, c := range n.children {
		derived = types.Max(derived, a.nodes[c].derived)
	}
	n.derived = derived
}

func (a *arena) propagate(idx int) {
	for idx != noNode {
		a.refresh(idx)
		idx = a.nodes[idx].parent
	}
}

func (a *arena) derived(idx int) types.Result {
	return a.nodes[idx].derived
}

// freeze converts the subtree rooted at idx into immutable step outcomes.
func (a *arena) freeze(idx int) *types.StepOutcome {
	n := a.nodes[idx]
	if n.kind == types.StepLeaf {
		return types.NewStepLeaf(n.name, n.result, n.err, n.duration)
	}
	children := make([]*types.StepOutcome, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, a.freeze(c))
	}
	return types.NewStepGroup(n.name, children, n.result, n.err, n.duration)
}
