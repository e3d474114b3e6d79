package outcomes

import "github.com/ethereum-optimism/infra/op-outcome/types"

// Counts breaks a set of test outcomes down by result.
type Counts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Ignored int `json:"ignored"`
	Pending int `json:"pending"`
	Failure int `json:"failure"`
	Error   int `json:"error"`
}

// CountOf tallies outcomes by result.
func CountOf(outcomes []*types.TestOutcome) Counts {
	var c Counts
	for _, o := range outcomes {
		c.add(o.Result(), 1)
	}
	return c
}

func (c *Counts) add(r types.Result, n int) {
	c.Total += n
	switch r {
	case types.ResultSuccess:
		c.Success += n
	case types.ResultSkipped:
		c.Skipped += n
	case types.ResultIgnored:
		c.Ignored += n
	case types.ResultPending:
		c.Pending += n
	case types.ResultFailure:
		c.Failure += n
	case types.ResultError:
		c.Error += n
	}
}

// Of returns the number of outcomes with result r.
func (c Counts) Of(r types.Result) int {
	switch r {
	case types.ResultSuccess:
		return c.Success
	case types.ResultSkipped:
		return c.Skipped
	case types.ResultIgnored:
		return c.Ignored
	case types.ResultPending:
		return c.Pending
	case types.ResultFailure:
		return c.Failure
	case types.ResultError:
		return c.Error
	default:
		return 0
	}
}

// Passing is the number of successful outcomes.
func (c Counts) Passing() int {
	return c.Success
}

// Failing is the number of outcomes that failed or errored.
func (c Counts) Failing() int {
	return c.Failure + c.Error
}

// Indeterminate is the number of pending, ignored and skipped outcomes.
func (c Counts) Indeterminate() int {
	return c.Pending + c.Ignored + c.Skipped
}

// Plus returns the element-wise sum of c and o.
func (c Counts) Plus(o Counts) Counts {
	for _, r := range types.AllResults {
		c.add(r, o.Of(r))
	}
	return c
}

// Result is the most severe result present in the counts.
func (c Counts) Result() types.Result {
	derived := types.ResultSuccess
	for _, r := range types.AllResults {
		if c.Of(r) > 0 {
			derived = types.Max(derived, r)
		}
	}
	return derived
}
