package steps

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Description identifies the test being started.
type Description struct {
	Title    string
	Identity string
	Tags     []types.Tag
}

// Summary is reported when a test finishes. A non-nil Failure marks the
// whole test as failed even when none of its steps did.
type Summary struct {
	Failure error
}

// State is the lifecycle state of a Tracker.
type State int

const (
	StateIdle State = iota
	StateTestRunning
	StateInGroup
	StateTestFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTestRunning:
		return "test running"
	case StateInGroup:
		return "in group"
	case StateTestFinished:
		return "test finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the configuration for a Tracker
type Config struct {
	Log    log.Logger
	Status *RunStatus
	Sinks  []Sink
	Clock  func() time.Time
}

// frame is one level of the nesting stack: an open group and, at most, one
// open leaf directly under it.
type frame struct {
	node      int
	openLeaf  int
	finalized bool
}

// Tracker turns a linear stream of step lifecycle calls into one step tree
// per test. A Tracker is driven by a single goroutine; use one tracker per
// concurrently running test and share a RunStatus between them.
type Tracker struct {
	log    log.Logger
	status *RunStatus
	sinks  []Sink
	now    func() time.Time

	desc    Description
	started time.Time
	arena   *arena
	stack   []frame
	results []*types.TestOutcome
}

// NewTracker creates an idle tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Status == nil {
		cfg.Status = NewRunStatus()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Tracker{
		log:    cfg.Log,
		status: cfg.Status,
		sinks:  cfg.Sinks,
		now:    cfg.Clock,
	}
}

// State reports where the tracker is in the test lifecycle.
func (t *Tracker) State() State {
	switch {
	case t.arena != nil && len(t.stack) > 1:
		return StateInGroup
	case t.arena != nil:
		return StateTestRunning
	case len(t.results) > 0:
		return StateTestFinished
	default:
		return StateIdle
	}
}

// Depth is the number of step groups currently open.
func (t *Tracker) Depth() int {
	if t.arena == nil {
		return 0
	}
	return len(t.stack) - 1
}

// CurrentResult is the result the running test would have if it finished
// now. Between tests it is the result of the last finished test.
func (t *Tracker) CurrentResult() types.Result {
	if t.arena != nil {
		return t.arena.derived(0)
	}
	if n := len(t.results); n > 0 {
		return t.results[n-1].Result()
	}
	return types.ResultSuccess
}

// TestRunStarted marks the start of a test run: the shared failure flag is
// cleared and the outcomes of earlier runs are forgotten. A test that is
// still running is finalized with its open step marked as an error first.
func (t *Tracker) TestRunStarted(description string) error {
	var err error
	if t.arena != nil {
		err = t.invalid("TestRunStarted", "run %q started before %q finished", description, t.desc.Title)
		t.markOpenAsError(fmt.Sprintf("test interrupted by the start of run %q", description))
		t.finish(Summary{})
	}
	t.status.Reset()
	t.results = nil
	t.log.Info("Test run started", "run", description)
	return err
}

// TestStarted begins tracking a new test. A test that is still running is
// finalized with its open step marked as an error first.
func (t *Tracker) TestStarted(desc Description) error {
	var err error
	if t.arena != nil {
		err = t.invalid("TestStarted", "test %q started before %q finished", desc.Title, t.desc.Title)
		t.markOpenAsError(fmt.Sprintf("test interrupted by the start of %q", desc.Title))
		t.finish(Summary{})
	}

	t.desc = desc
	t.started = t.now()
	t.arena = newArena(desc.Title, t.now)
	t.stack = []frame{{node: 0, openLeaf: noNode}}
	t.log.Debug("Test started", "test", desc.Title)
	return err
}

// StepGroupStarted opens a group under the current group.
func (t *Tracker) StepGroupStarted(name string) error {
	if !t.running() {
		return t.invalid("StepGroupStarted", "group %q started with no test running", name)
	}
	err := t.closeUnfinishedLeaf("StepGroupStarted", name)
	top := t.top()
	idx := t.arena.add(top.node, name, types.StepGroup, types.ResultSuccess)
	top.openLeaf = noNode
	t.stack = append(t.stack, frame{node: idx, openLeaf: noNode})
	return err
}

// StepStarted opens a pending leaf under the current group. An unfinished
// leaf at the same level is closed as an error.
func (t *Tracker) StepStarted(name string) error {
	if !t.running() {
		return t.invalid("StepStarted", "step %q started with no test running", name)
	}
	err := t.closeUnfinishedLeaf("StepStarted", name)
	top := t.top()
	top.openLeaf = t.arena.add(top.node, name, types.StepLeaf, types.ResultPending)
	top.finalized = false
	return err
}

// StepSucceeded marks the open leaf as successful. A leaf that already
// failed keeps its failure.
func (t *Tracker) StepSucceeded() error {
	if !t.running() {
		return t.invalid("StepSucceeded", "step succeeded with no test running")
	}
	top := t.top()
	if top.openLeaf == noNode {
		return nil
	}
	if current := t.arena.nodes[top.openLeaf].result; !current.IsFailing() {
		t.arena.setResult(top.openLeaf, types.ResultSuccess)
	}
	top.finalized = true
	return nil
}

// StepFailed records a failure on the open leaf, or on the current group
// when no leaf is open, and marks the run as failed.
func (t *Tracker) StepFailed(failure StepFailure) error {
	t.status.MarkFailed(failure.err())
	if !t.running() {
		return t.invalid("StepFailed", "step %q failed with no test running", failure.Description)
	}

	result := Classify(failure.Cause)
	top := t.top()
	target := top.node
	if top.openLeaf != noNode {
		target = top.openLeaf
		top.finalized = true
	}
	t.arena.setResult(target, types.Max(t.arena.nodes[target].result, result))
	t.arena.setError(target, failure.stepError())
	t.log.Debug("Step failed", "test", t.desc.Title, "step", t.arena.nodes[target].name, "result", result, "err", failure.Cause)
	return nil
}

// StepIgnored marks the open leaf as ignored. Ignored steps are often never
// started, so with no open leaf a closed ignored leaf is recorded instead.
func (t *Tracker) StepIgnored(name string) error {
	if !t.running() {
		return t.invalid("StepIgnored", "step %q ignored with no test running", name)
	}
	top := t.top()
	if top.openLeaf == noNode {
		idx := t.arena.add(top.node, name, types.StepLeaf, types.ResultIgnored)
		t.arena.close(idx)
		return nil
	}
	if current := t.arena.nodes[top.openLeaf].result; !current.IsFailing() {
		t.arena.setResult(top.openLeaf, types.ResultIgnored)
	}
	top.finalized = true
	return nil
}

// StepFinished closes the open leaf, or the current group when no leaf is
// open. A leaf that was never given a result finishes successfully.
func (t *Tracker) StepFinished(name string) error {
	if !t.running() {
		return t.invalid("StepFinished", "step %q finished with no test running", name)
	}
	top := t.top()
	switch {
	case top.openLeaf != noNode:
		if !top.finalized {
			t.arena.setResult(top.openLeaf, types.ResultSuccess)
		}
		t.arena.close(top.openLeaf)
		top.openLeaf = noNode
		top.finalized = false
		return nil
	case len(t.stack) > 1:
		t.popGroup(types.ResultSuccess)
		return nil
	default:
		return t.unmatchedFinish("StepFinished", name)
	}
}

// StepGroupFinished closes the current group.
func (t *Tracker) StepGroupFinished() error {
	return t.StepGroupFinishedWith(types.ResultSuccess)
}

// StepGroupFinishedWith closes the current group with an explicit result.
// The explicit result can raise the group's severity but never hide a
// failing child.
func (t *Tracker) StepGroupFinishedWith(result types.Result) error {
	if !t.running() {
		return t.invalid("StepGroupFinished", "group finished with no test running")
	}
	if len(t.stack) == 1 {
		return t.unmatchedFinish("StepGroupFinished", "")
	}
	t.popGroup(result)
	return nil
}

// UpdateCurrentStepStatus overwrites the result of the open leaf, or the
// explicit result of the current group, without changing the tree shape.
func (t *Tracker) UpdateCurrentStepStatus(result types.Result) error {
	if !t.running() {
		return t.invalid("UpdateCurrentStepStatus", "status update to %s with no test running", result)
	}
	top := t.top()
	if top.openLeaf != noNode {
		t.arena.setResult(top.openLeaf, result)
		top.finalized = true
		return nil
	}
	t.arena.setResult(top.node, result)
	return nil
}

// TestFinished closes any groups left open, freezes the step tree into a
// TestOutcome and hands it to the configured sinks.
func (t *Tracker) TestFinished(summary Summary) error {
	if !t.running() {
		return t.invalid("TestFinished", "test finished with no test running")
	}
	t.finish(summary)
	return nil
}

// NoStepsHaveFailed resets the run-level failure flag.
func (t *Tracker) NoStepsHaveFailed() {
	t.status.Reset()
}

// AStepHasFailed reports whether any tracker sharing this run status has
// seen a failed step.
func (t *Tracker) AStepHasFailed() bool {
	return t.status.HasFailed()
}

// StepError returns the first recorded step failure of the run.
func (t *Tracker) StepError() error {
	return t.status.Err()
}

// TestRunResults returns the outcomes finalized by this tracker, in order.
func (t *Tracker) TestRunResults() []*types.TestOutcome {
	results := make([]*types.TestOutcome, len(t.results))
	copy(results, t.results)
	return results
}

func (t *Tracker) running() bool {
	return t.arena != nil
}

func (t *Tracker) top() *frame {
	return &t.stack[len(t.stack)-1]
}

// closeUnfinishedLeaf closes the open leaf of the current group. A leaf
// that was never finalized is closed as an error.
func (t *Tracker) closeUnfinishedLeaf(op, next string) error {
	top := t.top()
	if top.openLeaf == noNode {
		return nil
	}
	leaf := top.openLeaf
	var err error
	if !top.finalized {
		name := t.arena.nodes[leaf].name
		err = t.invalid(op, "%q started before step %q finished", next, name)
		t.arena.setResult(leaf, types.ResultError)
		t.arena.setError(leaf, &types.StepError{Message: fmt.Sprintf("step %q was not finished before %q started", name, next)})
	}
	t.arena.close(leaf)
	top.openLeaf = noNode
	top.finalized = false
	return err
}

func (t *Tracker) popGroup(explicit types.Result) {
	top := t.top()
	if top.openLeaf != noNode {
		t.arena.close(top.openLeaf)
	}
	node := t.arena.nodes[top.node]
	t.arena.setResult(top.node, types.Max(node.result, explicit))
	t.arena.close(top.node)
	t.stack = t.stack[:len(t.stack)-1]
}

func (t *Tracker) unmatchedFinish(op, name string) error {
	err := t.invalid(op, "%q finished with no step or group open", name)
	if name == "" {
		name = "unmatched finish"
	}
	idx := t.arena.add(0, name, types.StepLeaf, types.ResultError)
	t.arena.setError(idx, &types.StepError{Message: err.Error()})
	t.arena.close(idx)
	return err
}

// markOpenAsError flags the innermost open node of an interrupted test.
func (t *Tracker) markOpenAsError(msg string) {
	top := t.top()
	target := top.node
	if top.openLeaf != noNode {
		target = top.openLeaf
	}
	t.arena.setResult(target, types.ResultError)
	t.arena.setError(target, &types.StepError{Message: msg})
}

func (t *Tracker) finish(summary Summary) {
	for len(t.stack) > 1 {
		t.popGroup(types.ResultSuccess)
	}
	if top := t.top(); top.openLeaf != noNode {
		t.arena.close(top.openLeaf)
	}
	if summary.Failure != nil {
		failure := StepFailure{Description: t.desc.Title, Cause: summary.Failure}
		t.status.MarkFailed(summary.Failure)
		t.arena.setResult(0, types.Max(t.arena.nodes[0].result, Classify(summary.Failure)))
		t.arena.setError(0, failure.stepError())
	}
	t.arena.close(0)

	root := t.arena.freeze(0)
	outcome := types.NewTestOutcome(t.desc.Title, t.desc.Identity, root, t.desc.Tags, t.started, t.now().Sub(t.started))
	t.results = append(t.results, outcome)
	t.arena = nil
	t.stack = nil

	metrics.RecordTestOutcome(outcome.Result())
	t.log.Debug("Test finished", "test", outcome.Title(), "result", outcome.Result(), "steps", outcome.StepCount())

	for _, sink := range t.sinks {
		if err := sink.Consume(outcome); err != nil {
			t.log.Error("Error consuming test outcome", "test", outcome.Title(), "err", err)
			metrics.RecordErrorDetails("sink", err)
		}
	}
}

func (t *Tracker) invalid(op, format string, args ...any) error {
	err := fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), ErrInvalidSequence)
	t.log.Warn("Recovered from invalid step sequence", "op", op, "test", t.desc.Title, "err", err)
	metrics.RecordInvalidSequence(op)
	return err
}
