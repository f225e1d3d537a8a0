package tester

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/kerntest/tester/flags"
	"github.com/kerntest/tester/types"
)

// parseConfig runs args through a cli app carrying the runtests flags and
// returns the Config built from them.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := &cli.App{
		Flags: flags.RunFlags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"tester"}, args...)))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, types.ModeCandidate, cfg.Mode)
	assert.Equal(t, 17, cfg.TotalTests)
	assert.Equal(t, "./tester", cfg.OutputDir)
	assert.Equal(t, filepath.Join("tester", "test_outputs.txt"), cfg.OutputPath)
	assert.Equal(t, filepath.Join("tester", "test_summary.yaml"), cfg.SummaryPath)
	assert.Equal(t, wd, cfg.WorkDir)
	assert.Equal(t, "make", cfg.MakeBinary)
	assert.Equal(t, "./tests", cfg.Artifact)
	assert.Equal(t, "N", cfg.EnvVar)
	assert.Empty(t, cfg.Markers)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.ExitCodeFails)
}

func TestNewConfigReferenceMode(t *testing.T) {
	for _, arg := range []string{"-r", "--ref"} {
		t.Run(arg, func(t *testing.T) {
			cfg, err := parseConfig(t, arg, "--output-dir", "out")
			require.NoError(t, err)
			assert.Equal(t, types.ModeReference, cfg.Mode)
			assert.Equal(t, filepath.Join("out", "ref_outputs.txt"), cfg.OutputPath)
			assert.Equal(t, filepath.Join("out", "ref_summary.yaml"), cfg.SummaryPath)
		})
	}
}

func TestNewConfigFlags(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig(t,
		"--count", "3",
		"--workdir", dir,
		"--marker", "FATAL",
		"--marker", "BUG:",
		"--concurrency", "4",
		"--timeout", "2s",
		"--exit-code-fails",
		"--summary", filepath.Join(dir, "s.yaml"),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TotalTests)
	assert.Equal(t, dir, cfg.WorkDir)
	assert.Equal(t, []string{"FATAL", "BUG:"}, cfg.Markers)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.ExitCodeFails)
	assert.Equal(t, filepath.Join(dir, "s.yaml"), cfg.SummaryPath)
}

func TestNewConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
count: 5
markers: ["PANIC"]
env_var: CASE
make: gmake
artifact: ./bin/tests
timeout: 10s
concurrency: 2
`), 0644))

	t.Run("file values apply", func(t *testing.T) {
		cfg, err := parseConfig(t, "--config", path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.TotalTests)
		assert.Equal(t, []string{"PANIC"}, cfg.Markers)
		assert.Equal(t, "CASE", cfg.EnvVar)
		assert.Equal(t, "gmake", cfg.MakeBinary)
		assert.Equal(t, "./bin/tests", cfg.Artifact)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
		assert.Equal(t, 2, cfg.Concurrency)
	})

	t.Run("explicit flags win", func(t *testing.T) {
		cfg, err := parseConfig(t, "--config", path, "--count", "2", "--env-var", "IDX")
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.TotalTests)
		assert.Equal(t, "IDX", cfg.EnvVar)
		assert.Equal(t, "gmake", cfg.MakeBinary)
	})
}

func TestLoadFileConfigErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		content  string
		errorMsg string
	}{
		{name: "malformed yaml", content: "count: [", errorMsg: "failed to parse config file"},
		{name: "negative count", content: "count: -1", errorMsg: "invalid count"},
		{name: "bad timeout", content: "timeout: soon", errorMsg: "invalid timeout"},
		{name: "negative concurrency", content: "concurrency: -2", errorMsg: "invalid concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadFileConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}

	_, err := LoadFileConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mode:        types.ModeCandidate,
			TotalTests:  1,
			OutputPath:  "tester/test_outputs.txt",
			SummaryPath: "tester/test_summary.yaml",
			MakeBinary:  "make",
			Artifact:    "./tests",
			EnvVar:      "N",
			Concurrency: 1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{"invalid mode", func(c *Config) { c.Mode = "bogus" }, "invalid mode"},
		{"zero count", func(c *Config) { c.TotalTests = 0 }, "test count must be positive"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency must be at least 1"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout cannot be negative"},
		{"no artifact", func(c *Config) { c.Artifact = "" }, "artifact is required"},
		{"no build tool", func(c *Config) { c.MakeBinary = "" }, "build tool is required"},
		{"no env var", func(c *Config) { c.EnvVar = "" }, "index environment variable is required"},
		{"summary collides", func(c *Config) { c.SummaryPath = c.OutputPath }, "collides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestErrorTypes(t *testing.T) {
	base := os.ErrNotExist
	rt := NewRuntimeError(base)
	assert.True(t, IsRuntimeError(rt))
	assert.False(t, IsTestFailureError(rt))
	assert.ErrorIs(t, rt, os.ErrNotExist)
	assert.Equal(t, "runtime error: file does not exist", rt.Error())

	tf := NewTestFailureError("1 of 3 cases failed", 2)
	assert.True(t, IsTestFailureError(tf))
	assert.False(t, IsRuntimeError(tf))
	assert.Equal(t, []int{2}, tf.Failed)
	assert.Equal(t, "test failure: 1 of 3 cases failed", tf.Error())

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
}
