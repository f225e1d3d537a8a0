package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerntest/tester/types"
)

// fakeMake writes a build tool that appends its arguments to args.log and
// prints to both streams before exiting with status.
func fakeMake(t *testing.T, dir string, status int) string {
	t.Helper()
	path := filepath.Join(dir, "fake-make")
	script := "#!/bin/sh\n" +
		"echo \"$*\" >> args.log\n" +
		"echo 'cc -o tests tests.c'\n" +
		"echo 'warning: unused variable' >&2\n" +
		"exit " + strconv.Itoa(status) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func readArgsLog(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "args.log"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestArgs(t *testing.T) {
	assert.Equal(t, []string{"clean", "tests"}, Args(types.ModeCandidate))
	assert.Equal(t, []string{"clean", "tests", "OPTION=-DREF"}, Args(types.ModeReference))
	// Targets must not be modified by appending the reference option
	assert.Equal(t, []string{"clean", "tests"}, Targets)
}

func TestBuilderRun(t *testing.T) {
	tests := []struct {
		name     string
		mode     types.Mode
		wantArgs string
	}{
		{name: "candidate", mode: types.ModeCandidate, wantArgs: "clean tests"},
		{name: "reference", mode: types.ModeReference, wantArgs: "clean tests OPTION=-DREF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var stderr bytes.Buffer
			b := NewBuilder(Config{
				MakeBinary: fakeMake(t, dir, 0),
				WorkDir:    dir,
				Stderr:     &stderr,
				Log:        log.NewLogger(log.DiscardHandler()),
			})

			out, err := b.Run(context.Background(), tt.mode)
			require.NoError(t, err)
			assert.True(t, out.Succeeded())
			assert.Equal(t, 0, out.ExitCode)
			assert.Equal(t, []string{tt.wantArgs}, readArgsLog(t, dir))
			assert.Equal(t, "warning: unused variable\n", stderr.String(), "stdout is discarded, stderr passed through")
		})
	}
}

func TestBuilderRunTwiceCleansEachTime(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(Config{MakeBinary: fakeMake(t, dir, 0), WorkDir: dir, Stderr: &bytes.Buffer{}})

	for i := 0; i < 2; i++ {
		_, err := b.Run(context.Background(), types.ModeCandidate)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"clean tests", "clean tests"}, readArgsLog(t, dir))
}

func TestBuilderFailureIsTolerated(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(Config{
		MakeBinary: fakeMake(t, dir, 2),
		WorkDir:    dir,
		Stderr:     &bytes.Buffer{},
		Log:        log.NewLogger(log.DiscardHandler()),
	})

	out, err := b.Run(context.Background(), types.ModeReference)
	require.NoError(t, err)
	assert.False(t, out.Succeeded())
	assert.Equal(t, 2, out.ExitCode)
	assert.Contains(t, out.Err.Error(), "exited with status 2")
}

func TestBuilderMissingTool(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(Config{
		MakeBinary: filepath.Join(dir, "no-such-make"),
		WorkDir:    dir,
		Log:        log.NewLogger(log.DiscardHandler()),
	})

	out, err := b.Run(context.Background(), types.ModeCandidate)
	require.NoError(t, err)
	assert.False(t, out.Succeeded())
	assert.Equal(t, -1, out.ExitCode)
	assert.Contains(t, out.Err.Error(), "failed to run")
}

func TestBuilderCancelled(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(Config{MakeBinary: fakeMake(t, dir, 0), WorkDir: dir, Stderr: &bytes.Buffer{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := b.Run(ctx, types.ModeCandidate)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestBuilderCancelKillsRecipeProcesses(t *testing.T) {
	dir := t.TempDir()
	makeBin := filepath.Join(dir, "fake-make")
	// The recipe process inherits the captured stderr pipe
	require.NoError(t, os.WriteFile(makeBin, []byte("#!/bin/sh\nsleep 8\n"), 0755))
	b := NewBuilder(Config{MakeBinary: makeBin, WorkDir: dir, Stderr: &bytes.Buffer{}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := b.Run(ctx, types.ModeCandidate)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestNewBuilderDefaults(t *testing.T) {
	b := NewBuilder(Config{})
	assert.Equal(t, DefaultMakeBinary, b.makeBinary)
	assert.Equal(t, os.Stderr, b.stderr)
	assert.NotNil(t, b.cmdBuilder)
}
