package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	"github.com/kerntest/tester"
	"github.com/kerntest/tester/compare"
	"github.com/kerntest/tester/exitcodes"
	"github.com/kerntest/tester/flags"
	"github.com/kerntest/tester/types"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "tester"
	app.Usage = "Build a kernel test binary and run its numbered test cases"
	app.Description = "tester rebuilds the test artifact, runs it once per test index and writes the delimited output log"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Commands = []*cli.Command{
		{
			Name:   "runtests",
			Usage:  "Run all tests, write output to a file. Can also be used to generate ref output.",
			Flags:  flags.RunFlags,
			Action: runTests,
		},
		{
			Name:   "compare",
			Usage:  "Compare the test output against the ref output, test by test",
			Flags:  flags.CompareFlags,
			Action: runCompare,
		},
	}
	// Reached only when no known command was given
	app.Action = func(ctx *cli.Context) error {
		_ = cli.ShowAppHelp(ctx)
		if ctx.Args().Present() {
			return cli.Exit(fmt.Sprintf("unknown command %q", ctx.Args().First()), exitcodes.RuntimeErr)
		}
		return cli.Exit("a command is required", exitcodes.RuntimeErr)
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
			return
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
	}
	return app
}

// exitCode maps an error returned by a command onto the process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case tester.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case tester.IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		// For other unspecified errors, default to exit code 1
		return exitcodes.TestFailure
	}
}

func setupLogger(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	return logger
}

func runTests(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	cfg, err := tester.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return tester.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	logger.Debug("Config", "config", cfg)

	t, err := tester.New(cfg, tester.WithOutput(ctx.App.Writer, ctx.App.ErrWriter))
	if err != nil {
		return tester.NewRuntimeError(fmt.Errorf("failed to create tester: %w", err))
	}

	_, err = t.Run(ctx.Context)
	return err
}

func runCompare(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	outDir := ctx.String(flags.OutputDir.Name)
	candidate := ctx.String(flags.Candidate.Name)
	if candidate == "" {
		candidate = filepath.Join(outDir, types.ModeCandidate.OutputFilename())
	}
	reference := ctx.String(flags.Reference.Name)
	if reference == "" {
		reference = filepath.Join(outDir, types.ModeReference.OutputFilename())
	}

	report, err := compare.Files(candidate, reference)
	if err != nil {
		return tester.NewRuntimeError(err)
	}
	compare.Print(ctx.App.Writer, report)

	if !report.Matches() {
		mismatches := report.Mismatches()
		logger.Info("Outputs differ", "candidate", candidate, "reference", reference, "tests", mismatches)
		return tester.NewTestFailureError(fmt.Sprintf("%d of %d tests differ from the reference: %v",
			len(mismatches), len(report.Cases), mismatches), mismatches...)
	}
	logger.Info("Outputs match", "candidate", candidate, "reference", reference, "tests", len(report.Cases))
	return nil
}
