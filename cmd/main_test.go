package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	outcome "github.com/ethereum-optimism/infra/op-outcome"
	"github.com/ethereum-optimism/infra/op-outcome/exitcodes"
	"github.com/ethereum-optimism/infra/op-outcome/flags"
	"github.com/ethereum-optimism/infra/op-outcome/service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

var _ cliapp.Lifecycle = (*aggregatorService)(nil)

func TestExitCoder(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "runtime", err: outcome.NewRuntimeError(errors.New("bad config")), want: exitcodes.RuntimeErr},
		{name: "wrapped runtime", err: fmt.Errorf("start: %w", outcome.NewRuntimeError(errors.New("x"))), want: exitcodes.RuntimeErr},
		{name: "test failure", err: outcome.NewTestFailureError("r", 1, 2), want: exitcodes.TestFailure},
		{name: "explicit exit code", err: cli.Exit("custom", 3), want: 3},
		{name: "unclassified", err: errors.New("boom"), want: exitcodes.TestFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCoder(tt.err).ExitCode())
		})
	}
}

func TestAggregatorService_HealthFollowsLifecycle(t *testing.T) {
	logger := log.NewLogger(log.DiscardHandler())
	cfg := &outcome.Config{
		ResultsDir:     t.TempDir(),
		HistoryBackend: flags.HistoryMemory,
		RunInterval:    time.Hour,
		Concurrency:    1,
		Log:            logger,
	}
	agg, err := outcome.New(context.Background(), cfg, "test", nil)
	require.NoError(t, err)
	s := &aggregatorService{Aggregator: agg, svc: service.New(cfg.Service, agg, logger)}

	status := func() int {
		rec := httptest.NewRecorder()
		s.svc.Healthz.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, status())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, http.StatusOK, status())
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, status())
	assert.True(t, s.Stopped())
}
