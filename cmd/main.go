package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	outcome "github.com/ethereum-optimism/infra/op-outcome"
	"github.com/ethereum-optimism/infra/op-outcome/exitcodes"
	"github.com/ethereum-optimism/infra/op-outcome/flags"
	"github.com/ethereum-optimism/infra/op-outcome/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-outcome"
	app.Usage = "Acceptance test outcome aggregator"
	app.Description = "op-outcome rolls recorded test outcomes up into requirement, release and trend reports"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		cli.HandleExitCoder(exitCoder(err))
	}

	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// exitCoder maps an application error onto the process exit code.
func exitCoder(err error) cli.ExitCoder {
	var exitErr cli.ExitCoder
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case outcome.IsRuntimeError(err):
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	case outcome.IsTestFailureError(err):
		return cli.Exit(err.Error(), exitcodes.TestFailure)
	default:
		return cli.Exit(err.Error(), exitcodes.TestFailure)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := outcome.NewConfig(ctx, log)
	if err != nil {
		return nil, outcome.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	agg, err := outcome.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, outcome.NewRuntimeError(fmt.Errorf("failed to create aggregator: %w", err))
	}
	return &aggregatorService{
		Aggregator: agg,
		svc:        service.New(cfg.Service, agg, log),
	}, nil
}

// aggregatorService serves the health and metrics endpoints for as long as
// the aggregator runs.
type aggregatorService struct {
	*outcome.Aggregator
	svc *service.Service
}

func (s *aggregatorService) Start(ctx context.Context) error {
	s.svc.Start(ctx)
	if err := s.Aggregator.Start(ctx); err != nil {
		s.svc.Shutdown()
		return err
	}
	return nil
}

func (s *aggregatorService) Stop(ctx context.Context) error {
	defer s.svc.Shutdown()
	return s.Aggregator.Stop(ctx)
}
