// Package steps records the execution of nested test steps.
//
// The main components are:
//   - Tracker: a state machine that turns step lifecycle calls into an immutable
//     step tree per test, recovering from out-of-order calls
//   - RunStatus: the run-level failure flag shared by every tracker of a run
//   - Sink: receives each test outcome as soon as it is finalized
//
// Step groups are built in a mutable arena while a test runs and frozen into
// types.StepOutcome values when it finishes, so nothing downstream ever sees a
// tree that is still changing.
package steps
