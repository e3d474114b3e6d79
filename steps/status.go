package steps

import (
	"sync"
	"sync/atomic"
)

// RunStatus is the run-level "a step has failed" flag shared by every tracker
// and listener observing the same run. It is reset only at run boundaries.
type RunStatus struct {
	failed atomic.Bool

	mu  sync.Mutex
	err error
}

// NewRunStatus returns a status with no recorded failure.
func NewRunStatus() *RunStatus {
	return &RunStatus{}
}

// MarkFailed records that a step failed. The first cause is kept.
func (s *RunStatus) MarkFailed(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = cause
	}
	s.failed.Store(true)
}

// HasFailed reports whether any step failed since the last reset.
func (s *RunStatus) HasFailed() bool {
	return s.failed.Load()
}

// Err returns the first recorded failure cause, if any.
func (s *RunStatus) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Reset clears the flag at the start of a new run.
func (s *RunStatus) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.failed.Store(false)
}
