package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kerntest/tester/types"
)

var _ CaseExecutor = (*caseExecutor)(nil)

// LineSink receives every captured output line, unchanged, in the order the
// artifact produced it.
type LineSink func(line []byte) error

// CommandBuilder creates the command for one case. The returned function is
// called once the case has finished.
type CommandBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// CaseExecutor runs the test artifact for a single case index.
type CaseExecutor interface {
	// Execute starts the artifact with the index in its environment, streams its
	// combined stdout/stderr to sink and waits for it to exit. An error is only
	// returned when the case could not be run at all (e.g. the artifact is
	// missing); detected failures are reported through the result.
	Execute(ctx context.Context, index int, sink LineSink) (*types.CaseResult, error)
}

// ExecutorConfig holds the settings of a case executor
type ExecutorConfig struct {
	Artifact      string         // Path of the test executable
	WorkDir       string         // Directory the artifact runs in
	EnvVar        string         // Environment variable carrying the index
	Timeout       time.Duration  // Per-case timeout, 0 disables it
	ExitCodeFails bool           // Treat a non-zero exit status as a failure
	Detector      *Detector      // Failure marker detector
	CmdBuilder    CommandBuilder // Optional, defaults to exec.CommandContext
	Log           log.Logger
}

// caseExecutor implements CaseExecutor
type caseExecutor struct {
	artifact      string
	workDir       string
	envVar        string
	timeout       time.Duration
	exitCodeFails bool
	detector      *Detector
	cmdBuilder    CommandBuilder
	log           log.Logger
	tracer        trace.Tracer
}

// DefaultCommandBuilder builds a context-bound command with no cleanup.
func DefaultCommandBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	return exec.CommandContext(ctx, name, arg...), func() {}
}

// NewCaseExecutor creates a new case executor
func NewCaseExecutor(cfg ExecutorConfig) (CaseExecutor, error) {
	if cfg.Artifact == "" {
		return nil, fmt.Errorf("artifact cannot be empty")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative")
	}
	if cfg.EnvVar == "" {
		cfg.EnvVar = DefaultIndexEnvVar
	}
	if cfg.Detector == nil {
		cfg.Detector = NewDetector(nil)
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = DefaultCommandBuilder
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}

	logger := cfg.Log.New("component", "executor")
	logger.Debug("Case executor ready", "artifact", cfg.Artifact, "markers", cfg.Detector.Markers())

	return &caseExecutor{
		artifact:      cfg.Artifact,
		workDir:       cfg.WorkDir,
		envVar:        cfg.EnvVar,
		timeout:       cfg.Timeout,
		exitCodeFails: cfg.ExitCodeFails,
		detector:      cfg.Detector,
		cmdBuilder:    cfg.CmdBuilder,
		log:           logger,
		tracer:        otel.Tracer("tester/runner"),
	}, nil
}

// Execute runs one case
func (e *caseExecutor) Execute(ctx context.Context, index int, sink LineSink) (*types.CaseResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if index <= 0 {
		return nil, fmt.Errorf("invalid test index %d", index)
	}
	if sink == nil {
		sink = func([]byte) error { return nil }
	}

	ctx, span := e.tracer.Start(ctx, "test-case", trace.WithAttributes(attribute.Int("index", index)))
	defer span.End()

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd, cleanup := e.cmdBuilder(runCtx, e.artifact)
	defer cleanup()
	cmd.Dir = e.workDir
	cmd.Env = withEnvOverrides(os.Environ(), map[string]string{e.envVar: strconv.Itoa(index)})
	cmd.WaitDelay = killGracePeriod
	KillGroupOnCancel(cmd)

	// stdout and stderr share one pipe so lines keep their relative order
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	e.log.Debug("Running test case", "index", index, "artifact", e.artifact, "dir", e.workDir)

	result := &types.CaseResult{Index: index, Status: types.TestStatusPass}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to start test artifact %s: %w", e.artifact, err)
	}

	endsWithNewline, scanErr := e.scan(stdout, result, sink)
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	result.Duration = time.Since(start)

	if scanErr != nil {
		span.RecordError(scanErr)
		span.SetStatus(codes.Error, "output capture failed")
		return nil, fmt.Errorf("failed to capture output of test %d: %w", index, scanErr)
	}

	if ctx.Err() != nil {
		// The whole run was cancelled, not just this case
		return nil, ctx.Err()
	}

	if e.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.Status = types.TestStatusError
		result.Error = fmt.Errorf("test %d timed out after %v", index, e.timeout)
		msg := fmt.Sprintf("TEST TIMED OUT after %v\n", e.timeout)
		if !endsWithNewline {
			msg = "\n" + msg
		}
		if err := sink([]byte(msg)); err != nil {
			return nil, fmt.Errorf("failed to record timeout of test %d: %w", index, err)
		}
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			e.log.Warn("Test case left its output pipe open after exiting", "index", index)
		case runCtx.Err() != nil && errors.Is(waitErr, runCtx.Err()):
			// The artifact had exited cleanly; its leftover processes were killed
		default:
			return nil, fmt.Errorf("failed waiting for test %d: %w", index, waitErr)
		}
	}

	if e.exitCodeFails && result.ExitCode != 0 && result.Status == types.TestStatusPass {
		result.Status = types.TestStatusFail
		result.Error = fmt.Errorf("test %d exited with status %d", index, result.ExitCode)
	}

	if result.Failed() {
		span.SetStatus(codes.Error, string(result.Status))
	}
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("exit_code", result.ExitCode),
		attribute.Int("lines", result.Lines),
	)
	e.log.Debug("Test case finished", "index", index, "status", result.Status,
		"exitCode", result.ExitCode, "lines", result.Lines, "duration", result.Duration)

	return result, nil
}

// scan reads the combined output line by line, hands each line to sink and
// records the first failure marker. It reports whether the output ended with
// a newline.
func (e *caseExecutor) scan(r io.Reader, result *types.CaseResult, sink LineSink) (bool, error) {
	br := bufio.NewReader(r)
	endsWithNewline := true
	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			result.Lines++
			endsWithNewline = line[len(line)-1] == '\n'
			if result.MatchedMarker == "" {
				if marker, ok := e.detector.Match(string(line)); ok {
					result.Status = types.TestStatusFail
					result.MatchedMarker = marker
					result.MatchedLine = strings.TrimRight(string(line), "\r\n")
					result.Error = fmt.Errorf("detected %q in output of test %d", marker, result.Index)
				}
			}
			if err := sink(line); err != nil {
				return endsWithNewline, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return endsWithNewline, nil
			}
			return endsWithNewline, fmt.Errorf("failed to read output: %w", readErr)
		}
	}
}

// withEnvOverrides replaces or appends the given variables in base.
func withEnvOverrides(base []string, overrides map[string]string) []string {
	result := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		keep := true
		for key := range overrides {
			if strings.HasPrefix(kv, key+"=") {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, kv)
		}
	}
	for key, val := range overrides {
		result = append(result, key+"="+val)
	}
	return result
}
