// Package tester rebuilds a kernel test binary and runs its numbered test
// cases, writing their combined output to a delimited result log.
package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/kerntest/tester/build"
	"github.com/kerntest/tester/metrics"
	"github.com/kerntest/tester/reporting"
	"github.com/kerntest/tester/resultlog"
	"github.com/kerntest/tester/runner"
	"github.com/kerntest/tester/types"
)

// Tester drives one harness run: build, run every case, report.
type Tester struct {
	config   *Config
	builder  *build.Builder
	executor runner.CaseExecutor
	stdout   io.Writer
	stderr   io.Writer
}

// Option customises a Tester
type Option func(*Tester)

// WithOutput redirects the console output of the run.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(t *Tester) {
		t.stdout = stdout
		t.stderr = stderr
	}
}

// New creates a Tester for config.
func New(config *Config, opts ...Option) (*Tester, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	t := &Tester{
		config: config,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.builder = build.NewBuilder(build.Config{
		MakeBinary: config.MakeBinary,
		WorkDir:    config.WorkDir,
		Stderr:     t.stderr,
		Log:        config.Log,
	})

	executor, err := runner.NewCaseExecutor(runner.ExecutorConfig{
		Artifact:      config.Artifact,
		WorkDir:       config.WorkDir,
		EnvVar:        config.EnvVar,
		Timeout:       config.Timeout,
		ExitCodeFails: config.ExitCodeFails,
		Detector:      runner.NewDetector(config.Markers),
		Log:           config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create case executor: %w", err)
	}
	t.executor = executor

	return t, nil
}

// Run builds the artifact and runs every case. It returns a TestFailureError
// when failures were detected and a RuntimeError when the run could not be
// completed. The RunResult is returned whenever every case ran.
func (t *Tester) Run(ctx context.Context) (*types.RunResult, error) {
	cfg := t.config
	runID := uuid.New().String()
	start := time.Now()
	logger := cfg.Log.New("run_id", runID)

	if err := t.ensureOutputDir(); err != nil {
		metrics.RecordErrorDetails("output_dir", err)
		return nil, NewRuntimeError(err)
	}

	fmt.Fprintf(t.stdout, "\nRun tests in %s mode (%s)...\n\n", cfg.Mode.Label(), cfg.Mode.OutputFilename())
	logger.Info("Starting test run", "mode", cfg.Mode, "total", cfg.TotalTests, "output", cfg.OutputPath)

	fmt.Fprint(t.stdout, "Make clean tests...")
	outcome, err := t.builder.Run(ctx, cfg.Mode)
	if err != nil {
		fmt.Fprintln(t.stdout)
		return nil, NewRuntimeError(fmt.Errorf("build interrupted: %w", err))
	}
	metrics.RecordBuild(cfg.Mode, outcome.Succeeded(), outcome.Duration)
	if outcome.Succeeded() {
		fmt.Fprintln(t.stdout, "\t\tDone.")
	} else {
		metrics.RecordErrorDetails("build", outcome.Err)
		fmt.Fprintf(t.stdout, "\t\tFailed (%v), running the existing artifact.\n", outcome.Err)
	}

	w, err := resultlog.Create(cfg.OutputPath)
	if err != nil {
		metrics.RecordErrorDetails("result_log", err)
		return nil, NewRuntimeError(err)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Executor:    t.executor,
		TotalTests:  cfg.TotalTests,
		Concurrency: cfg.Concurrency,
		Progress:    runner.NewConsoleProgressIndicator(t.stdout),
		Log:         logger,
	})
	if err != nil {
		_ = w.Close()
		return nil, NewRuntimeError(err)
	}

	cases, runErr := testRunner.RunAll(ctx, w)
	if runErr == nil && w.Blocks() != cfg.TotalTests {
		runErr = fmt.Errorf("result log holds %d blocks, expected %d", w.Blocks(), cfg.TotalTests)
	}
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close result log: %w", err)
	}
	for _, c := range cases {
		metrics.RecordCase(cfg.Mode, runID, c)
	}
	if runErr != nil {
		metrics.RecordErrorDetails("run", runErr)
		t.writeMetrics(logger)
		return nil, NewRuntimeError(fmt.Errorf("test run aborted after %d of %d cases: %w", len(cases), cfg.TotalTests, runErr))
	}

	result := types.NewRunResult(runID, cfg.Mode, cfg.OutputPath, cases, start)
	fmt.Fprintf(t.stdout, "Check output at `%s`.\n", cfg.Mode.OutputFilename())

	reporting.PrintResultsTable(t.stdout, result, reporting.IsTerminal(t.stdout))
	fmt.Fprintln(t.stdout, result.String())

	if err := reporting.WriteSummary(cfg.SummaryPath, result); err != nil {
		// The log is complete; a missing summary does not invalidate the run
		logger.Warn("Failed to write run summary", "path", cfg.SummaryPath, "err", err)
		metrics.RecordErrorDetails("summary", err)
	}
	metrics.RecordRun(cfg.Mode, runID, result.Status, result.Stats.Passed, result.Stats.Failed, result.Duration)
	t.writeMetrics(logger)

	logger.Info("Test run completed", "status", result.Status, "passed", result.Stats.Passed,
		"failed", result.Stats.Failed, "duration", result.Duration)

	if result.Status != types.TestStatusPass {
		failed := result.FailedIndices()
		return result, NewTestFailureError(fmt.Sprintf("%d of %d cases failed: %v", len(failed), result.Stats.Total, failed), failed...)
	}
	return result, nil
}

// ensureOutputDir creates the output directory when it is missing.
func (t *Tester) ensureOutputDir() error {
	dir := t.config.OutputDir
	if dir == "" {
		dir = filepath.Dir(t.config.OutputPath)
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(t.stdout, "Folder '%s' already exists.\n", dir)
		return nil
	case err == nil:
		return fmt.Errorf("output path %s exists and is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to stat output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	fmt.Fprintf(t.stdout, "Folder '%s' created.\n", dir)
	return nil
}

func (t *Tester) writeMetrics(logger log.Logger) {
	if err := metrics.WriteTextfile(t.config.MetricsFile); err != nil {
		logger.Warn("Failed to write metrics", "path", t.config.MetricsFile, "err", err)
	}
}
