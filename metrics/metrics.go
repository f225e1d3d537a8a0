package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kerntest/tester/types"
)

const (
	MetricsNamespace = "tester"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	// Registry holds every harness metric. It is separate from the default
	// registry so a textfile dump only contains harness series.
	Registry = prometheus.NewRegistry()
	factory  = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	casesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of executed test cases",
	}, []string{
		"mode",
		"run_id",
		"result",
	})

	caseFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "case_failures_total",
		Help:      "Count of failed test cases by the marker that flagged them",
	}, []string{
		"mode",
		"index",
		"marker",
	})

	caseDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Wall time of a single test case",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{
		"mode",
	})

	buildsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "builds_total",
		Help:      "Count of build tool invocations",
	}, []string{
		"mode",
		"result",
	})

	buildDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "build_duration_seconds",
		Help:      "Duration of the last build",
	}, []string{
		"mode",
	})

	runResults = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a harness run",
	}, []string{
		"mode",
		"run_id",
		"result",
	})

	runCasesPassed = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_passed",
		Help:      "Number of passed cases in a run",
	}, []string{
		"mode",
		"run_id",
	})

	runCasesFailed = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_failed",
		Help:      "Number of failed cases in a run",
	}, []string{
		"mode",
		"run_id",
	})

	runDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a harness run",
	}, []string{
		"mode",
		"run_id",
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

// RecordCase records the outcome of a single case.
func RecordCase(mode types.Mode, runID string, result *types.CaseResult) {
	if result == nil {
		return
	}
	if !isValidResult(result.Status) {
		log.Error("RecordCase - invalid result", "result", result.Status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "cases_total",
			"mode", mode,
			"run_id", runID,
			"index", result.Index,
			"result", result.Status)
	}
	casesTotal.WithLabelValues(string(mode), runID, string(result.Status)).Inc()
	caseDuration.WithLabelValues(string(mode)).Observe(result.Duration.Seconds())
	if result.Failed() {
		marker := result.MatchedMarker
		switch {
		case marker != "":
		case result.TimedOut:
			marker = "timeout"
		default:
			marker = "exit_code"
		}
		caseFailures.WithLabelValues(string(mode), strconv.Itoa(result.Index), marker).Inc()
	}
}

// RecordBuild records one invocation of the build tool.
func RecordBuild(mode types.Mode, succeeded bool, duration time.Duration) {
	result := "success"
	if !succeeded {
		result = "failure"
	}
	buildsTotal.WithLabelValues(string(mode), result).Inc()
	buildDuration.WithLabelValues(string(mode)).Set(duration.Seconds())
}

// RecordRun records the aggregate outcome of a run.
func RecordRun(
	mode types.Mode,
	runID string,
	result types.TestStatus,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(string(mode), runID, string(result)).Set(1)
	runCasesPassed.WithLabelValues(string(mode), runID).Set(float64(passed))
	runCasesFailed.WithLabelValues(string(mode), runID).Set(float64(failed))
	runDuration.WithLabelValues(string(mode), runID).Set(duration.Seconds())
}

// WriteTextfile dumps the registry in the text exposition format, for
// collection by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
