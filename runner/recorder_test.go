package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/steps"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

func newTestRecorder(concurrency int, sinks ...steps.Sink) *Recorder {
	return NewRecorder(Config{
		Log:         log.NewLogger(log.DiscardHandler()),
		Sinks:       sinks,
		Concurrency: concurrency,
	})
}

func passingCase(title string) Case {
	return Case{
		Description: steps.Description{Title: title, Tags: []types.Tag{types.NewTag("feature", "Checkout")}},
		Body: func(_ context.Context, tr *steps.Tracker) error {
			if err := tr.StepStarted("do " + title); err != nil {
				return err
			}
			return tr.StepFinished("do " + title)
		},
	}
}

func TestRecorder_CollectsFromTrackers(t *testing.T) {
	rec := newTestRecorder(1)

	first := rec.NewTracker()
	second := rec.NewTracker()
	require.NoError(t, first.TestStarted(steps.Description{Title: "a"}))
	require.NoError(t, second.TestStarted(steps.Description{Title: "b"}))
	require.NoError(t, second.StepStarted("boom"))
	require.NoError(t, second.StepFailed(steps.StepFailure{Cause: errors.New("boom")}))
	require.NoError(t, second.TestFinished(steps.Summary{}))
	require.NoError(t, first.TestFinished(steps.Summary{}))

	results := rec.Results()
	require.Equal(t, 2, results.Total())
	assert.Equal(t, "b", results.Outcomes()[0].Title(), "outcomes are collected in finalization order")
	assert.True(t, first.AStepHasFailed(), "trackers share the run status")
	assert.Equal(t, types.ResultError, results.Result())

	rec.Reset()
	assert.Equal(t, 0, rec.Results().Total())
	assert.False(t, rec.Status().HasFailed())
}

func TestRecorder_Execute(t *testing.T) {
	var forwarded atomic.Int32
	sink := steps.SinkFunc(func(*types.TestOutcome) error {
		forwarded.Add(1)
		return nil
	})

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			forwarded.Store(0)
			rec := newTestRecorder(concurrency, sink)

			var cases []Case
			for i := 0; i < 10; i++ {
				cases = append(cases, passingCase(fmt.Sprintf("test-%d", i)))
			}
			cases = append(cases,
				Case{
					Description: steps.Description{Title: "fails"},
					Body: func(context.Context, *steps.Tracker) error {
						return steps.NewAssertionError("expected %d items", 3)
					},
				},
				Case{
					Description: steps.Description{Title: "panics"},
					Body: func(context.Context, *steps.Tracker) error {
						panic("nil map")
					},
				},
			)

			results, err := rec.Execute(context.Background(), cases)
			require.NoError(t, err)
			require.Len(t, results, 12)
			for i := 0; i < 10; i++ {
				assert.Equal(t, fmt.Sprintf("test-%d", i), results[i].Title())
				assert.Equal(t, types.ResultSuccess, results[i].Result())
			}
			assert.Equal(t, types.ResultFailure, results[10].Result())
			assert.Equal(t, types.ResultError, results[11].Result())
			assert.Contains(t, results[11].Steps().FirstError().Message, "nil map")

			assert.Equal(t, 12, rec.Results().Total())
			assert.Equal(t, int32(12), forwarded.Load())
			assert.True(t, rec.Status().HasFailed())
		})
	}
}

func TestRecorder_ExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRecorder(2).Execute(ctx, []Case{passingCase("never runs")})
	assert.ErrorIs(t, err, context.Canceled)
}
