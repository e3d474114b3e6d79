// Package types contains the result model shared by the tracker, the
// collection and the rollups.
package types

import (
	"fmt"
	"strings"
)

// Result is the outcome of a step, a test or an aggregate of tests.
// Values are ordered by severity, lowest first, so the severity of a set of
// results is simply the maximum value.
type Result int

const (
	ResultSuccess Result = iota
	ResultSkipped
	ResultIgnored
	ResultPending
	ResultFailure
	ResultError
)

var resultNames = [...]string{
	"success",
	"skipped",
	"ignored",
	"pending",
	"failure",
	"error",
}

// AllResults lists every result from least to most severe.
var AllResults = []Result{
	ResultSuccess,
	ResultSkipped,
	ResultIgnored,
	ResultPending,
	ResultFailure,
	ResultError,
}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return fmt.Sprintf("result(%d)", int(r))
	}
	return resultNames[r]
}

// IsValid reports whether r is one of the declared results.
func (r Result) IsValid() bool {
	return r >= ResultSuccess && r <= ResultError
}

// IsFailing reports whether r is a failure or an error.
func (r Result) IsFailing() bool {
	return r == ResultFailure || r == ResultError
}

// IsIndeterminate reports whether the step or test did not run to a verdict:
// pending, ignored or skipped.
func (r Result) IsIndeterminate() bool {
	return r == ResultPending || r == ResultIgnored || r == ResultSkipped
}

// MoreSevereThan reports whether r takes precedence over other.
func (r Result) MoreSevereThan(other Result) bool {
	return r > other
}

func (r Result) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid result %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(b []byte) error {
	parsed, err := ParseResult(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseResult converts a result name (case-insensitive) into a Result.
func ParseResult(s string) (Result, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range resultNames {
		if n == name {
			return Result(i), nil
		}
	}
	return ResultSuccess, fmt.Errorf("invalid result %q", s)
}

// Max returns the more severe of two results.
func Max(a, b Result) Result {
	if b > a {
		return b
	}
	return a
}

// Derive returns the most severe of the given results, or ResultSuccess when
// there are none. It is the single precedence rule used for groups, tests,
// collections, requirements and releases.
func Derive(results ...Result) Result {
	derived := ResultSuccess
	for _, r := range results {
		derived = Max(derived, r)
	}
	return derived
}
