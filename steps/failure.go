package steps

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ErrInvalidSequence is returned when lifecycle calls arrive out of order.
// The tracker has always recovered by the time it is returned.
var ErrInvalidSequence = errors.New("invalid step sequence")

// StepFailure describes a failed step and the cause raised by its code.
type StepFailure struct {
	Description string
	Cause       error
}

// assertionFailure is implemented by errors that represent a failed
// expectation rather than an unexpected error.
type assertionFailure interface {
	AssertionFailure() bool
}

// AssertionError is an assertion-style step failure.
type AssertionError struct {
	Message string
}

// NewAssertionError formats an assertion failure.
func NewAssertionError(format string, args ...any) *AssertionError {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

func (e *AssertionError) Error() string {
	return e.Message
}

func (e *AssertionError) AssertionFailure() bool {
	return true
}

// IsAssertion reports whether err, or any error it wraps, is an assertion failure.
func IsAssertion(err error) bool {
	var af assertionFailure
	return err != nil && errors.As(err, &af) && af.AssertionFailure()
}

// Classify maps a step failure cause to a result: assertion failures are
// ResultFailure, anything else ResultError. A failure reported without a
// cause is treated as an assertion failure.
func Classify(cause error) types.Result {
	if cause == nil || IsAssertion(cause) {
		return types.ResultFailure
	}
	return types.ResultError
}

func (f StepFailure) stepError() *types.StepError {
	if f.Cause == nil {
		msg := "step failed"
		if f.Description != "" {
			msg = fmt.Sprintf("step %q failed", f.Description)
		}
		return &types.StepError{Message: msg, Assertion: true}
	}
	return types.NewStepError(f.Cause, IsAssertion(f.Cause))
}

func (f StepFailure) err() error {
	if f.Cause != nil {
		return f.Cause
	}
	return f.stepError()
}
