package outcome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-outcome/artifacts"
	"github.com/ethereum-optimism/infra/op-outcome/history"
	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/registry"
	"github.com/ethereum-optimism/infra/op-outcome/reporting"
	"github.com/ethereum-optimism/infra/op-outcome/requirements"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// Aggregator implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Aggregator{}

// Pass is the product of one aggregation pass.
type Pass struct {
	RunID        string
	Timestamp    time.Time
	Duration     time.Duration
	Tests        *outcomes.Collection
	Requirements *requirements.RequirementsOutcomes
	Releases     *requirements.ReleaseOutcomes
	Snapshot     history.Snapshot
	// Previous is the snapshot recorded by the pass before this one, if any.
	Previous *history.Snapshot
}

// Failed reports whether any aggregated test failed or errored.
func (p *Pass) Failed() bool {
	return p.Tests.Counts().Failing() > 0
}

func (p *Pass) reportData() *reporting.ReportData {
	return &reporting.ReportData{
		RunID:        p.RunID,
		Timestamp:    p.Timestamp,
		Duration:     p.Duration,
		Requirements: p.Requirements,
		Releases:     p.Releases,
	}
}

// Aggregator loads recorded test outcomes, rolls them up against the
// project's requirements and releases, and appends a history snapshot,
// once or on a fixed interval.
type Aggregator struct {
	ctx      context.Context
	config   *Config
	version  string
	registry *registry.Registry
	store    history.Store
	history  *history.History
	tracer   trace.Tracer
	out      reporting.ReportWriter
	now      func() time.Time

	mu   sync.Mutex
	last *Pass

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Aggregator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating aggregator with config",
		"resultsDir", config.ResultsDir,
		"project", config.ProjectFile,
		"historyBackend", config.HistoryBackend,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:         config.Log,
		ProjectFile: config.ProjectFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	store, err := newHistoryStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}
	config.Log.Info("outcome.New: created registry and history", "backend", store.Name())

	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	return &Aggregator{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		store:            store,
		history:          history.New(history.Config{Log: config.Log, Store: store}),
		tracer:           otel.Tracer("outcome aggregator"),
		out:              reporting.NewStdoutWriter(),
		now:              time.Now,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs an aggregation pass immediately and then, unless in run-once
// mode, periodically at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (a *Aggregator) Start(ctx context.Context) error {
	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)

	if a.config.RunOnce {
		a.config.Log.Info("Starting op-outcome in run-once mode")
	} else {
		a.config.Log.Info("Starting op-outcome in continuous mode", "interval", a.config.RunInterval)
	}

	if a.config.ClearHistory {
		if err := a.history.Clear(ctx); err != nil {
			return NewRuntimeError(err)
		}
	}

	pass, err := a.Aggregate(ctx)
	if err != nil {
		a.config.Log.Error("Runtime error aggregating outcomes", "error", err)
		return err
	}

	if a.config.RunOnce {
		a.config.Log.Info("Aggregation completed, exiting (run-once mode)")
		if pass.Failed() {
			counts := pass.Tests.Counts()
			a.config.Log.Warn("Aggregated outcomes include failures, returning exit code 1")
			return NewTestFailureError(pass.RunID, counts.Failing(), counts.Total)
		}
		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic aggregation goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic aggregation")
					return
				}
				if _, err := a.Aggregate(ctx); err != nil {
					a.config.Log.Error("Error running periodic aggregation", "error", err)
				}

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic aggregation")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic aggregation")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("op-outcome started successfully")
	return nil
}

// Aggregate runs one aggregation pass: reload the project, load the recorded
// outcomes, roll them up, append a history snapshot and report.
func (a *Aggregator) Aggregate(ctx context.Context) (pass *Pass, err error) {
	runID := uuid.New().String()
	ctx, span := a.tracer.Start(ctx, "aggregate", trace.WithAttributes(attribute.String("run_id", runID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordErrorDetails("aggregate", err)
		}
		span.End()
	}()

	start := a.now()
	log := a.config.Log.New("run_id", runID)

	if err := a.registry.Reload(); err != nil {
		log.Warn("Project reload failed, aggregating against the last valid project", "err", err)
		metrics.RecordErrorDetails("project_reload", err)
	}
	tests, err := artifacts.LoadDir(ctx, a.config.ResultsDir, a.config.Concurrency)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to load outcomes: %w", err))
	}
	metrics.RecordArtifactsLoaded(tests.Total())
	log.Debug("Loaded outcomes", "count", tests.Total(), "dir", a.config.ResultsDir)

	ro := requirements.Build(a.registry.GetRequirementTree(), tests, requirements.WithLogger(log))
	releases, err := requirements.BuildReleases(a.registry.GetReleases(), tests)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to build releases: %w", err))
	}

	previous, err := a.history.Get(ctx)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	snap, err := a.history.Append(ctx, runID, ro)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	pass = &Pass{
		RunID:        runID,
		Timestamp:    start,
		Duration:     a.now().Sub(start),
		Tests:        tests,
		Requirements: ro,
		Releases:     releases,
		Snapshot:     snap,
	}
	if len(previous) > 0 {
		pass.Previous = &previous[len(previous)-1]
	}
	span.SetAttributes(
		attribute.String("result", tests.Result().String()),
		attribute.Int("tests", tests.Total()),
	)

	a.recordMetrics(pass)
	if err := a.report(pass); err != nil {
		return nil, NewRuntimeError(err)
	}

	a.mu.Lock()
	a.last = pass
	a.mu.Unlock()

	counts := tests.Counts()
	log.Info("Aggregation completed",
		"result", tests.Result(),
		"mode", ro.Mode(),
		"total", counts.Total,
		"failing", counts.Failing(),
		"duration", pass.Duration)
	if pass.Previous != nil {
		log.Info("Trend since previous run",
			"previous_run", pass.Previous.RunID,
			"passing_delta", snap.Overall.Passing-pass.Previous.Overall.Passing,
			"failing_delta", snap.Overall.Failing-pass.Previous.Overall.Failing)
	}
	return pass, nil
}

func (a *Aggregator) recordMetrics(pass *Pass) {
	counts := pass.Tests.Counts()
	metrics.RecordAggregation(
		pass.RunID,
		counts.Result(),
		counts.Total,
		counts.Passing(),
		counts.Failing(),
		counts.Indeterminate(),
		pass.Duration,
	)
	for _, node := range pass.Requirements.Flatten() {
		metrics.RecordRequirement(node.Type(), node.Name(), node.Result())
	}
	for _, node := range pass.Releases.Flatten() {
		metrics.RecordRelease(node.Name(), node.Result())
	}
}

func (a *Aggregator) report(pass *Pass) error {
	data := pass.reportData()
	table, err := reporting.NewTableFormatter("Requirement Outcomes", a.config.ShowTests).Format(data)
	if err != nil {
		return fmt.Errorf("failed to format results table: %w", err)
	}
	if err := a.out.Write(table); err != nil {
		return fmt.Errorf("failed to write results table: %w", err)
	}

	if a.config.SummaryFile == "" {
		return nil
	}
	summary, err := reporting.NewTextSummaryFormatter(true).Format(data)
	if err != nil {
		return fmt.Errorf("failed to format summary: %w", err)
	}
	if err := reporting.NewFileWriter(a.config.SummaryFile).Write(summary); err != nil {
		return fmt.Errorf("failed to write summary to %s: %w", a.config.SummaryFile, err)
	}
	return nil
}

// LastPass returns the most recent successful aggregation pass, or nil.
func (a *Aggregator) LastPass() *Pass {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Healthy returns nil while the aggregator is running and has completed at
// least one pass.
func (a *Aggregator) Healthy() error {
	if a.Stopped() {
		return errors.New("aggregator stopped")
	}
	if a.LastPass() == nil {
		return errors.New("no successful aggregation pass yet")
	}
	return nil
}

// Stop stops the periodic aggregation and releases the history backend.
// Stop implements the cliapp.Lifecycle interface.
func (a *Aggregator) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping op-outcome")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)
	close(a.done)
	a.wg.Wait()

	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s history: %w", a.store.Name(), err)
		}
	}
	a.config.Log.Info("op-outcome stopped successfully")
	return nil
}

// Stopped returns true if the op-outcome service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *Aggregator) Stopped() bool {
	return !a.running.Load()
}
