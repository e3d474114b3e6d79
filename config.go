package outcome

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-outcome/flags"
	"github.com/ethereum-optimism/infra/op-outcome/history"
	"github.com/ethereum-optimism/infra/op-outcome/service"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration
type Config struct {
	ResultsDir     string               // Directory holding recorded outcome files
	ProjectFile    string               // Optional project file; empty means tag-type grouping
	HistoryBackend flags.HistoryBackend // Where snapshots are kept
	HistoryFile    string               // Snapshot file for the file backend
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKey       string
	RunInterval    time.Duration  // Interval between aggregation passes
	RunOnce        bool           // Exit after one aggregation pass
	ClearHistory   bool           // Drop stored snapshots before the first pass
	ShowTests      bool           // List individual tests in the results table
	Concurrency    int            // Number of outcome files loaded concurrently
	SummaryFile    string         // Optional text summary destination
	Service        service.Config // Health and metrics endpoints
	Log            log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	resultsDir := ctx.String(flags.ResultsDir.Name)
	if resultsDir == "" {
		return nil, errors.New("results directory is required")
	}
	absResultsDir, err := filepath.Abs(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for results directory '%s': %w", resultsDir, err)
	}

	var absProject string
	if project := ctx.String(flags.Project.Name); project != "" {
		absProject, err = filepath.Abs(project)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for project file '%s': %w", project, err)
		}
	}

	backend := flags.HistoryBackend(ctx.String(flags.HistoryBackendFlag.Name))
	if !backend.IsValid() {
		return nil, fmt.Errorf("invalid history backend: %s", backend)
	}
	var historyFile string
	if backend == flags.HistoryFile {
		historyFile, err = filepath.Abs(ctx.String(flags.HistoryFile.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for history file: %w", err)
		}
	}

	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval must not be negative, got %s", runInterval)
	}

	healthzPort := ctx.Int(flags.HealthzPort.Name)
	if healthzPort < 0 || healthzPort > 65535 {
		return nil, fmt.Errorf("invalid healthz port %d", healthzPort)
	}
	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		ResultsDir:     absResultsDir,
		ProjectFile:    absProject,
		HistoryBackend: backend,
		HistoryFile:    historyFile,
		RedisAddr:      ctx.String(flags.RedisAddr.Name),
		RedisPassword:  ctx.String(flags.RedisPassword.Name),
		RedisDB:        ctx.Int(flags.RedisDB.Name),
		RedisKey:       ctx.String(flags.RedisKey.Name),
		RunInterval:    runInterval,
		RunOnce:        runInterval == 0,
		ClearHistory:   ctx.Bool(flags.ClearHistory.Name),
		ShowTests:      ctx.Bool(flags.ShowTests.Name),
		Concurrency:    concurrency,
		SummaryFile:    ctx.String(flags.SummaryFile.Name),
		Service: service.Config{
			HealthzAddr: ctx.String(flags.HealthzAddr.Name),
			HealthzPort: healthzPort,
			Metrics:     metricsCfg,
		},
		Log: log,
	}, nil
}

// newHistoryStore builds the snapshot backend selected by the config
func newHistoryStore(cfg *Config) (history.Store, error) {
	switch cfg.HistoryBackend {
	case flags.HistoryMemory, "":
		return history.NewMemoryStore(), nil
	case flags.HistoryFile:
		return history.NewFileStore(cfg.HistoryFile), nil
	case flags.HistoryRedis:
		var opts []history.RedisOption
		if cfg.RedisKey != "" {
			opts = append(opts, history.WithKey(cfg.RedisKey))
		}
		return history.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}
