package outcome

import (
	"errors"
	"fmt"
)

// RuntimeError represents an operational error that should lead to exit code 2,
// such as an unreadable results directory or an invalid project file.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports an aggregation pass in which tests failed or
// errored (exit code 1).
type TestFailureError struct {
	RunID   string
	Failing int
	Total   int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d of %d tests failed in run %s", e.Failing, e.Total, e.RunID)
}

func NewTestFailureError(runID string, failing, total int) *TestFailureError {
	return &TestFailureError{RunID: runID, Failing: failing, Total: total}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
