package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_OUTCOME"

// HistoryBackend selects where history snapshots are kept
type HistoryBackend string

const (
	HistoryMemory HistoryBackend = "memory"
	HistoryFile   HistoryBackend = "file"
	HistoryRedis  HistoryBackend = "redis"
)

func (b HistoryBackend) String() string {
	return string(b)
}

func (b HistoryBackend) IsValid() bool {
	for _, valid := range ValidHistoryBackends() {
		if b == valid {
			return true
		}
	}
	return false
}

// ValidHistoryBackends returns all supported history backends
func ValidHistoryBackends() []HistoryBackend {
	return []HistoryBackend{HistoryMemory, HistoryFile, HistoryRedis}
}

func validateHistoryBackend(value string) error {
	if !HistoryBackend(value).IsValid() {
		names := make([]string, 0, len(ValidHistoryBackends()))
		for _, b := range ValidHistoryBackends() {
			names = append(names, b.String())
		}
		return fmt.Errorf("history-backend must be one of: %s", strings.Join(names, ", "))
	}
	return nil
}

var (
	ResultsDir = &cli.StringFlag{
		Name:     "results-dir",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "RESULTS_DIR"),
		Usage:    "Directory holding the recorded test outcome files (*.outcome.json)",
	}
	Project = &cli.StringFlag{
		Name:    "project",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROJECT"),
		Usage:   "Path to the project file declaring requirement types, requirements and releases (eg. 'project.yaml')",
	}
	HistoryBackendFlag = &cli.StringFlag{
		Name:    "history-backend",
		Value:   string(HistoryMemory),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HISTORY_BACKEND"),
		Usage:   "Where to keep history snapshots: memory, file or redis",
		Action: func(ctx *cli.Context, value string) error {
			return validateHistoryBackend(value)
		},
	}
	HistoryFile = &cli.StringFlag{
		Name:    "history-file",
		Value:   "outcome-history.jsonl",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HISTORY_FILE"),
		Usage:   "History file used by the file backend",
	}
	RedisAddr = &cli.StringFlag{
		Name:    "redis-addr",
		Value:   "localhost:6379",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_ADDR"),
		Usage:   "Redis address used by the redis history backend",
	}
	RedisPassword = &cli.StringFlag{
		Name:    "redis-password",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_PASSWORD"),
		Usage:   "Redis password used by the redis history backend",
	}
	RedisDB = &cli.IntFlag{
		Name:    "redis-db",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_DB"),
		Usage:   "Redis database used by the redis history backend",
	}
	RedisKey = &cli.StringFlag{
		Name:    "redis-key",
		Value:   "op-outcome:history",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_KEY"),
		Usage:   "Redis list key holding history snapshots",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between aggregation passes (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ClearHistory = &cli.BoolFlag{
		Name:    "clear-history",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CLEAR_HISTORY"),
		Usage:   "Clear stored history snapshots before the first aggregation pass",
	}
	ShowTests = &cli.BoolFlag{
		Name:    "show-tests",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_TESTS"),
		Usage:   "List individual tests under each requirement in the results table",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   4,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Number of outcome files loaded concurrently",
	}
	SummaryFile = &cli.StringFlag{
		Name:    "summary-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUMMARY_FILE"),
		Usage:   "Optional path to write the text summary of each aggregation pass to",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Listen address of the health check endpoint",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Listen port of the health check endpoint. Set to 0 to disable it.",
	}
)

var requiredFlags = []cli.Flag{
	ResultsDir,
}

var optionalFlags = []cli.Flag{
	Project,
	HistoryBackendFlag,
	HistoryFile,
	RedisAddr,
	RedisPassword,
	RedisDB,
	RedisKey,
	RunInterval,
	ClearHistory,
	ShowTests,
	Concurrency,
	SummaryFile,
	HealthzAddr,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
