package steps

import "github.com/ethereum-optimism/infra/op-outcome/types"

// Sink consumes test outcomes as trackers finalize them.
type Sink interface {
	Consume(outcome *types.TestOutcome) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(outcome *types.TestOutcome) error

func (f SinkFunc) Consume(outcome *types.TestOutcome) error {
	return f(outcome)
}
