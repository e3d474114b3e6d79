package outcome

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	runtimeErr := NewRuntimeError(errors.New("no such directory"))
	failure := NewTestFailureError("run-1", 2, 5)

	tests := []struct {
		name        string
		err         error
		isRuntime   bool
		isTestError bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "runtime", err: runtimeErr, isRuntime: true},
		{name: "wrapped runtime", err: fmt.Errorf("start: %w", runtimeErr), isRuntime: true},
		{name: "test failure", err: failure, isTestError: true},
		{name: "wrapped test failure", err: fmt.Errorf("run: %w", failure), isTestError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isRuntime, IsRuntimeError(tt.err))
			assert.Equal(t, tt.isTestError, IsTestFailureError(tt.err))
		})
	}

	assert.Equal(t, "runtime error: no such directory", runtimeErr.Error())
	assert.Equal(t, "test failure: 2 of 5 tests failed in run run-1", failure.Error())
	assert.ErrorIs(t, runtimeErr, runtimeErr.Err)
}
