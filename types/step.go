package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/acarl005/stripansi"
)

// StepKind distinguishes executed steps from step groups.
type StepKind int

const (
	StepLeaf StepKind = iota
	StepGroup
)

func (k StepKind) String() string {
	switch k {
	case StepLeaf:
		return "leaf"
	case StepGroup:
		return "group"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k StepKind) MarshalText() ([]byte, error) {
	if k != StepLeaf && k != StepGroup {
		return nil, fmt.Errorf("invalid step kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *StepKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "leaf":
		*k = StepLeaf
	case "group":
		*k = StepGroup
	default:
		return fmt.Errorf("invalid step kind %q", string(b))
	}
	return nil
}

// StepError is the captured cause of a failed step. Assertion is set when
// the cause was an assertion-style failure rather than an unexpected error.
type StepError struct {
	Message   string `json:"message"`
	Assertion bool   `json:"assertion,omitempty"`
}

// NewStepError captures err, stripping terminal escape sequences from its message.
func NewStepError(err error, assertion bool) *StepError {
	if err == nil {
		return nil
	}
	return &StepError{
		Message:   stripansi.Strip(err.Error()),
		Assertion: assertion,
	}
}

func (e *StepError) Error() string {
	return e.Message
}

// StepOutcome is one node of a finished step tree. Leaves carry their own
// result; a group's result is always derived from its children and can only
// be raised, never lowered, by an explicit group result.
//
// A StepOutcome is immutable once built and safe to share between goroutines.
type StepOutcome struct {
	name     string
	kind     StepKind
	result   Result
	err      *StepError
	duration time.Duration
	children []*StepOutcome
}

// NewStepLeaf builds a finished leaf step.
func NewStepLeaf(name string, result Result, err *StepError, duration time.Duration) *StepOutcome {
	return &StepOutcome{
		name:     name,
		kind:     StepLeaf,
		result:   result,
		err:      err,
		duration: duration,
	}
}

// NewStepGroup builds a finished group. Its result is the most severe of the
// children's results and explicit; pass ResultSuccess when the group has no
// explicit result of its own.
func NewStepGroup(name string, children []*StepOutcome, explicit Result, err *StepError, duration time.Duration) *StepOutcome {
	kids := make([]*StepOutcome, len(children))
	copy(kids, children)
	return &StepOutcome{
		name:     name,
		kind:     StepGroup,
		result:   Max(deriveChildren(kids), explicit),
		err:      err,
		duration: duration,
		children: kids,
	}
}

func deriveChildren(children []*StepOutcome) Result {
	derived := ResultSuccess
	for _, c := range children {
		derived = Max(derived, c.result)
	}
	return derived
}

func (s *StepOutcome) Name() string            { return s.name }
func (s *StepOutcome) Kind() StepKind          { return s.kind }
func (s *StepOutcome) Result() Result          { return s.result }
func (s *StepOutcome) Error() *StepError       { return s.err }
func (s *StepOutcome) Duration() time.Duration { return s.duration }
func (s *StepOutcome) IsGroup() bool           { return s.kind == StepGroup }

// Children returns the child steps in execution order.
func (s *StepOutcome) Children() []*StepOutcome {
	kids := make([]*StepOutcome, len(s.children))
	copy(kids, s.children)
	return kids
}

// Walk visits s and its descendants depth-first. Returning false from the
// visitor skips the node's children.
func (s *StepOutcome) Walk(visitor func(step *StepOutcome, depth int) bool) {
	s.walk(visitor, 0)
}

func (s *StepOutcome) walk(visitor func(*StepOutcome, int) bool, depth int) {
	if !visitor(s, depth) {
		return
	}
	for _, c := range s.children {
		c.walk(visitor, depth+1)
	}
}

// LeafCount returns the number of leaf steps below (or at) s.
func (s *StepOutcome) LeafCount() int {
	if s.kind == StepLeaf {
		return 1
	}
	count := 0
	for _, c := range s.children {
		count += c.LeafCount()
	}
	return count
}

// FirstError returns the first captured error in execution order.
func (s *StepOutcome) FirstError() *StepError {
	var found *StepError
	s.Walk(func(step *StepOutcome, _ int) bool {
		if found != nil {
			return false
		}
		if step.err != nil {
			found = step.err
			return false
		}
		return true
	})
	return found
}

type stepWire struct {
	Name     string         `json:"name"`
	Kind     StepKind       `json:"kind"`
	Result   Result         `json:"result"`
	Error    *StepError     `json:"error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Children []*StepOutcome `json:"children,omitempty"`
}

func (s *StepOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepWire{
		Name:     s.name,
		Kind:     s.kind,
		Result:   s.result,
		Error:    s.err,
		Duration: s.duration,
		Children: s.children,
	})
}

// UnmarshalJSON restores a step tree. A stored group result is treated as the
// group's explicit result, so the derived-result invariant holds even for
// hand-edited artifacts.
func (s *StepOutcome) UnmarshalJSON(b []byte) error {
	var w stepWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	for i, c := range w.Children {
		if c == nil {
			return fmt.Errorf("step %q has a null child at index %d", w.Name, i)
		}
	}
	if w.Kind == StepGroup {
		*s = *NewStepGroup(w.Name, w.Children, w.Result, w.Error, w.Duration)
		return nil
	}
	if len(w.Children) > 0 {
		return fmt.Errorf("leaf step %q cannot have children", w.Name)
	}
	*s = *NewStepLeaf(w.Name, w.Result, w.Error, w.Duration)
	return nil
}
