package tester

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/kerntest/tester/flags"
	"github.com/kerntest/tester/types"
)

// Config holds the configuration of one harness invocation
type Config struct {
	Mode          types.Mode
	TotalTests    int           // Cases run are 1..TotalTests
	OutputDir     string        // Directory holding the result logs
	OutputPath    string        // Result log of this run, derived from Mode
	SummaryPath   string        // YAML run summary
	WorkDir       string        // Directory the build tool and the artifact run in
	MakeBinary    string        // Build tool
	Artifact      string        // Test executable
	EnvVar        string        // Environment variable carrying the index
	Markers       []string      // Failure markers, empty for the defaults
	Concurrency   int           // 1 runs strictly sequentially
	Timeout       time.Duration // Per-case timeout, 0 disables it
	ExitCodeFails bool          // A non-zero exit status also fails a case
	MetricsFile   string        // Prometheus textfile, empty disables it
	Log           log.Logger
}

// FileConfig is the optional YAML file given with --config. Values set here
// are used unless the matching flag is given explicitly.
type FileConfig struct {
	Count       int      `yaml:"count"`
	Markers     []string `yaml:"markers"`
	EnvVar      string   `yaml:"env_var"`
	Make        string   `yaml:"make"`
	Artifact    string   `yaml:"artifact"`
	Timeout     string   `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
}

// LoadFileConfig reads and parses a YAML config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if fc.Count < 0 {
		return nil, fmt.Errorf("invalid count %d in config file %s", fc.Count, path)
	}
	if fc.Concurrency < 0 {
		return nil, fmt.Errorf("invalid concurrency %d in config file %s", fc.Concurrency, path)
	}
	if fc.Timeout != "" {
		if _, err := time.ParseDuration(fc.Timeout); err != nil {
			return nil, fmt.Errorf("invalid timeout %q in config file %s: %w", fc.Timeout, path, err)
		}
	}
	return &fc, nil
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}

	mode := types.ModeFromRef(ctx.Bool(flags.Ref.Name))

	cfg := &Config{
		Mode:          mode,
		TotalTests:    ctx.Int(flags.Count.Name),
		OutputDir:     ctx.String(flags.OutputDir.Name),
		WorkDir:       ctx.String(flags.WorkDir.Name),
		MakeBinary:    ctx.String(flags.MakeBinary.Name),
		Artifact:      ctx.String(flags.Artifact.Name),
		EnvVar:        ctx.String(flags.EnvVar.Name),
		Markers:       ctx.StringSlice(flags.Markers.Name),
		Concurrency:   ctx.Int(flags.Concurrency.Name),
		Timeout:       ctx.Duration(flags.Timeout.Name),
		ExitCodeFails: ctx.Bool(flags.ExitCodeFails.Name),
		SummaryPath:   ctx.String(flags.Summary.Name),
		MetricsFile:   ctx.String(flags.MetricsFile.Name),
		Log:           log,
	}

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.applyFile(ctx, fc)
		log.Debug("Applied config file", "path", path)
	}

	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.WorkDir = wd
	}
	absWorkDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory '%s': %w", cfg.WorkDir, err)
	}
	cfg.WorkDir = absWorkDir

	if cfg.OutputDir == "" {
		cfg.OutputDir = flags.DefaultOutputDir
	}
	cfg.OutputPath = filepath.Join(cfg.OutputDir, mode.OutputFilename())
	if cfg.SummaryPath == "" {
		cfg.SummaryPath = filepath.Join(cfg.OutputDir, mode.SummaryFilename())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile copies file values into fields whose flag was not given.
func (c *Config) applyFile(ctx *cli.Context, fc *FileConfig) {
	if fc.Count > 0 && !ctx.IsSet(flags.Count.Name) {
		c.TotalTests = fc.Count
	}
	if len(fc.Markers) > 0 && !ctx.IsSet(flags.Markers.Name) {
		c.Markers = fc.Markers
	}
	if fc.EnvVar != "" && !ctx.IsSet(flags.EnvVar.Name) {
		c.EnvVar = fc.EnvVar
	}
	if fc.Make != "" && !ctx.IsSet(flags.MakeBinary.Name) {
		c.MakeBinary = fc.Make
	}
	if fc.Artifact != "" && !ctx.IsSet(flags.Artifact.Name) {
		c.Artifact = fc.Artifact
	}
	if fc.Concurrency > 0 && !ctx.IsSet(flags.Concurrency.Name) {
		c.Concurrency = fc.Concurrency
	}
	if fc.Timeout != "" && !ctx.IsSet(flags.Timeout.Name) {
		// Already validated by LoadFileConfig
		c.Timeout, _ = time.ParseDuration(fc.Timeout)
	}
}

// Validate checks the invariants of a Config
func (c *Config) Validate() error {
	if !c.Mode.IsValid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.TotalTests <= 0 {
		return fmt.Errorf("test count must be positive, got %d", c.TotalTests)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.Artifact == "" {
		return errors.New("artifact is required")
	}
	if c.MakeBinary == "" {
		return errors.New("build tool is required")
	}
	if c.EnvVar == "" {
		return errors.New("index environment variable is required")
	}
	if c.OutputPath == c.SummaryPath {
		return fmt.Errorf("summary path %s collides with the result log", c.SummaryPath)
	}
	return nil
}
