package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/steps"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Config holds the configuration for a Recorder
type Config struct {
	Log    log.Logger
	Status *steps.RunStatus
	Sinks  []steps.Sink
	Clock  func() time.Time
	// Concurrency bounds how many cases Execute runs at once. Zero or one
	// runs them sequentially.
	Concurrency int
}

// Case is one test to execute under its own tracker. A non-nil error from
// Body is recorded as the test's summary failure.
type Case struct {
	Description steps.Description
	Body        func(ctx context.Context, tracker *steps.Tracker) error
}

// Recorder hands out trackers for the tests of one run and collects every
// outcome they finalize. All trackers share the recorder's RunStatus.
type Recorder struct {
	log         log.Logger
	status      *steps.RunStatus
	sinks       []steps.Sink
	clock       func() time.Time
	concurrency int

	mu       sync.Mutex
	outcomes []*types.TestOutcome
}

// NewRecorder creates a recorder for a new run.
func NewRecorder(cfg Config) *Recorder {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Status == nil {
		cfg.Status = steps.NewRunStatus()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Recorder{
		log:         cfg.Log.New("component", "recorder"),
		status:      cfg.Status,
		sinks:       cfg.Sinks,
		clock:       cfg.Clock,
		concurrency: cfg.Concurrency,
	}
}

// NewTracker returns a tracker whose outcomes are collected by the recorder
// and forwarded to its sinks. Use one tracker per concurrently running test.
func (r *Recorder) NewTracker() *steps.Tracker {
	sinks := make([]steps.Sink, 0, len(r.sinks)+1)
	sinks = append(sinks, r)
	sinks = append(sinks, r.sinks...)
	return steps.NewTracker(steps.Config{
		Log:    r.log,
		Status: r.status,
		Sinks:  sinks,
		Clock:  r.clock,
	})
}

// Consume collects a finalized outcome.
func (r *Recorder) Consume(outcome *types.TestOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

// Results returns every outcome collected so far, in finalization order.
func (r *Recorder) Results() *outcomes.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return outcomes.New(r.outcomes)
}

// Status returns the run-level status shared by the recorder's trackers.
func (r *Recorder) Status() *steps.RunStatus {
	return r.status
}

// Reset starts a new run: collected outcomes are dropped and the shared
// failure flag is cleared.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = nil
	r.status.Reset()
}

// Execute runs cases, each under its own tracker, and returns their outcomes
// in case order. Cases run concurrently up to the configured limit.
func (r *Recorder) Execute(ctx context.Context, cases []Case) ([]*types.TestOutcome, error) {
	results := make([]*types.TestOutcome, len(cases))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range cases {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outcome, err := r.executeCase(gCtx, c)
			if err != nil {
				return err
			}
			results[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Recorder) executeCase(ctx context.Context, c Case) (*types.TestOutcome, error) {
	tracker := r.NewTracker()
	if err := tracker.TestStarted(c.Description); err != nil {
		return nil, err
	}

	var failure error
	func() {
		defer func() {
			if p := recover(); p != nil {
				failure = fmt.Errorf("test panicked: %v", p)
			}
		}()
		if c.Body != nil {
			failure = c.Body(ctx, tracker)
		}
	}()

	if err := tracker.TestFinished(steps.Summary{Failure: failure}); err != nil {
		return nil, err
	}
	results := tracker.TestRunResults()
	outcome := results[len(results)-1]
	r.log.Debug("Executed test", "test", outcome.Title(), "result", outcome.Result())
	return outcome, nil
}
