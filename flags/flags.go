package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	"github.com/kerntest/tester/runner"
)

const EnvVarPrefix = "TESTER"

const (
	DefaultOutputDir = "./tester"
)

var (
	Ref = &cli.BoolFlag{
		Name:    "ref",
		Aliases: []string{"r"},
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REF"),
		Usage:   "Build against the reference implementation and write the reference log",
	}
	Count = &cli.IntFlag{
		Name:    "count",
		Value:   runner.DefaultTotalTests,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COUNT"),
		Usage:   "Number of test cases to run (indices 1..count)",
		Action: func(ctx *cli.Context, v int) error {
			if v <= 0 {
				return fmt.Errorf("count must be positive, got %d", v)
			}
			return nil
		},
	}
	OutputDir = &cli.StringFlag{
		Name:    "output-dir",
		Value:   DefaultOutputDir,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_DIR"),
		Usage:   "Directory holding the result logs",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Directory the build tool and the test artifact run in (default: current directory)",
	}
	MakeBinary = &cli.StringFlag{
		Name:    "make",
		Value:   "make",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MAKE"),
		Usage:   "Build tool used to run 'clean tests'",
	}
	Artifact = &cli.StringFlag{
		Name:    "artifact",
		Value:   runner.DefaultArtifact,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ARTIFACT"),
		Usage:   "Path of the test executable, relative to the work directory",
	}
	EnvVar = &cli.StringFlag{
		Name:    "env-var",
		Value:   runner.DefaultIndexEnvVar,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENV_VAR"),
		Usage:   "Environment variable that carries the test index",
	}
	Markers = &cli.StringSliceFlag{
		Name:    "marker",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MARKER"),
		Usage:   "Output substring that flags a case as failed; repeatable (default: 'ASSERTION FAILURE:' and 'Kernel Panic!')",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   runner.DefaultConcurrency,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Number of cases run at once. 1 runs strictly sequentially.",
		Action: func(ctx *cli.Context, v int) error {
			if v < 1 {
				return fmt.Errorf("concurrency must be at least 1, got %d", v)
			}
			return nil
		},
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Per-case timeout (e.g. '30s'). 0 disables it.",
	}
	ExitCodeFails = &cli.BoolFlag{
		Name:    "exit-code-fails",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXIT_CODE_FAILS"),
		Usage:   "Also fail a case when the test executable exits non-zero",
	}
	Summary = &cli.StringFlag{
		Name:    "summary",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUMMARY"),
		Usage:   "Path of the YAML run summary (default: <output-dir>/test_summary.yaml or ref_summary.yaml)",
	}
	MetricsFile = &cli.StringFlag{
		Name:    "metrics-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "METRICS_FILE"),
		Usage:   "Write Prometheus metrics in textfile-collector format to this path",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "YAML file with defaults for count, markers, env-var, make, artifact and timeout",
	}

	Candidate = &cli.StringFlag{
		Name:    "candidate",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CANDIDATE"),
		Usage:   "Candidate result log (default: <output-dir>/test_outputs.txt)",
	}
	Reference = &cli.StringFlag{
		Name:    "reference",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REFERENCE"),
		Usage:   "Reference result log (default: <output-dir>/ref_outputs.txt)",
	}
)

// RunFlags are accepted by the runtests command
var RunFlags = []cli.Flag{
	Ref,
	Count,
	OutputDir,
	WorkDir,
	MakeBinary,
	Artifact,
	EnvVar,
	Markers,
	Concurrency,
	Timeout,
	ExitCodeFails,
	Summary,
	MetricsFile,
	ConfigFile,
}

// CompareFlags are accepted by the compare command
var CompareFlags = []cli.Flag{
	Candidate,
	Reference,
	OutputDir,
}

// Flags are the global flags shared by every command
var Flags []cli.Flag

func init() {
	Flags = append(Flags, oplog.CLIFlags(EnvVarPrefix)...)
}
