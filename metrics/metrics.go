package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const (
	MetricsNamespace = "outcome"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_outcomes_total",
		Help:      "Count of finalized test outcomes by result",
	}, []string{
		"result",
	})

	invalidSequencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "invalid_sequences_total",
		Help:      "Count of out-of-order step lifecycle calls the tracker recovered from",
	}, []string{
		"op",
	})

	aggregationResult = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "aggregation_result",
		Help:      "Overall result of the latest aggregation pass",
	}, []string{
		"run_id",
		"result",
	})

	aggregationTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "aggregation_tests",
		Help:      "Number of tests seen by an aggregation pass, by outcome class",
	}, []string{
		"run_id",
		"class",
	})

	aggregationDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "aggregation_duration_seconds",
		Help:      "Duration of an aggregation pass",
	}, []string{
		"run_id",
	})

	requirementResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "requirement_result",
		Help:      "Severity of each requirement's aggregated result (0 = success, 5 = error)",
	}, []string{
		"type",
		"name",
	})

	releaseResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "release_result",
		Help:      "Severity of each release's aggregated result (0 = success, 5 = error)",
	}, []string{
		"name",
	})

	snapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "history_snapshots_total",
		Help:      "Count of history snapshots appended",
	}, []string{
		"backend",
	})

	artifactsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "artifacts_loaded",
		Help:      "Number of outcome artifacts loaded by the latest pass",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordTestOutcome(result types.Result) {
	if !result.IsValid() {
		log.Error("RecordTestOutcome - invalid result", "result", int(result))
		return
	}
	testOutcomesTotal.WithLabelValues(result.String()).Inc()
}

func RecordInvalidSequence(op string) {
	if Debug {
		log.Debug("metric inc",
			"m", "invalid_sequences_total",
			"op", op)
	}
	invalidSequencesTotal.WithLabelValues(op).Inc()
}

func RecordAggregation(
	runID string,
	result types.Result,
	total int,
	passing int,
	failing int,
	pending int,
	duration time.Duration,
) {
	aggregationResult.WithLabelValues(runID, result.String()).Set(1)
	aggregationTests.WithLabelValues(runID, "total").Set(float64(total))
	aggregationTests.WithLabelValues(runID, "passing").Set(float64(passing))
	aggregationTests.WithLabelValues(runID, "failing").Set(float64(failing))
	aggregationTests.WithLabelValues(runID, "pending").Set(float64(pending))
	aggregationDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func RecordRequirement(reqType string, name string, result types.Result) {
	requirementResults.WithLabelValues(reqType, name).Set(float64(result))
}

func RecordRelease(name string, result types.Result) {
	releaseResults.WithLabelValues(name).Set(float64(result))
}

func RecordSnapshot(backend string) {
	snapshotsTotal.WithLabelValues(backend).Inc()
}

func RecordArtifactsLoaded(count int) {
	artifactsLoaded.Set(float64(count))
}
