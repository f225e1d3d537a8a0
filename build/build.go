// Package build rebuilds the test artifact with the external build tool.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kerntest/tester/runner"
	"github.com/kerntest/tester/types"
)

const (
	// DefaultMakeBinary is looked up on PATH
	DefaultMakeBinary = "make"

	// ReferenceOption selects the reference implementation at compile time
	ReferenceOption = "OPTION=-DREF"
)

// Targets are always rebuilt from scratch so a stale artifact of the other
// mode is never reused.
var Targets = []string{"clean", "tests"}

// Outcome describes a finished build step.
type Outcome struct {
	Args     []string
	ExitCode int
	Duration time.Duration
	Err      error // nil when the build tool exited 0
}

// Succeeded reports whether the build tool ran and exited 0.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// Config holds the settings of a Builder
type Config struct {
	MakeBinary string
	WorkDir    string
	Stderr     io.Writer             // Build diagnostics, defaults to os.Stderr
	CmdBuilder runner.CommandBuilder // Optional, defaults to exec.CommandContext
	Log        log.Logger
}

// Builder runs "<make> clean tests" in the work directory.
type Builder struct {
	makeBinary string
	workDir    string
	stderr     io.Writer
	cmdBuilder runner.CommandBuilder
	log        log.Logger
	tracer     trace.Tracer
}

// NewBuilder creates a Builder, applying defaults for unset fields.
func NewBuilder(cfg Config) *Builder {
	if cfg.MakeBinary == "" {
		cfg.MakeBinary = DefaultMakeBinary
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = runner.DefaultCommandBuilder
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Builder{
		makeBinary: cfg.MakeBinary,
		workDir:    cfg.WorkDir,
		stderr:     cfg.Stderr,
		cmdBuilder: cfg.CmdBuilder,
		log:        cfg.Log.New("component", "build"),
		tracer:     otel.Tracer("tester/build"),
	}
}

// Args returns the build tool arguments for mode.
func Args(mode types.Mode) []string {
	args := append([]string(nil), Targets...)
	if mode == types.ModeReference {
		args = append(args, ReferenceOption)
	}
	return args
}

// Run invokes the build tool and waits for it. The build tool's stdout is
// discarded; its stderr is passed through. A failed build is reported in the
// Outcome and never returned as an error: the caller decides whether to go
// on. Only a cancelled context is returned as an error.
func (b *Builder) Run(ctx context.Context, mode types.Mode) (*Outcome, error) {
	args := Args(mode)
	ctx, span := b.tracer.Start(ctx, "build", trace.WithAttributes(
		attribute.String("mode", mode.String()),
		attribute.StringSlice("args", args),
	))
	defer span.End()

	cmd, cleanup := b.cmdBuilder(ctx, b.makeBinary, args...)
	defer cleanup()
	cmd.Dir = b.workDir
	runner.KillGroupOnCancel(cmd)
	cmd.Stdout = io.Discard
	cmd.Stderr = b.stderr

	b.log.Info("Building test artifact", "make", b.makeBinary, "args", args, "dir", b.workDir)

	out := &Outcome{Args: args}
	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			out.Err = fmt.Errorf("%s %v exited with status %d", b.makeBinary, args, out.ExitCode)
		} else {
			out.ExitCode = -1
			out.Err = fmt.Errorf("failed to run %s: %w", b.makeBinary, err)
		}
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "build failed")
		b.log.Warn("Build failed, running the existing artifact anyway", "err", out.Err, "duration", out.Duration)
		return out, nil
	}

	span.SetAttributes(attribute.Int("exit_code", 0))
	b.log.Info("Build finished", "duration", out.Duration)
	return out, nil
}
