package resultlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBlock(t *testing.T, w *Writer, i int, lines ...string) {
	t.Helper()
	require.NoError(t, w.BeginCase(i))
	for _, l := range lines {
		require.NoError(t, w.WriteLine([]byte(l)))
	}
	require.NoError(t, w.EndCase(i))
}

func TestWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	writeBlock(t, w, 1, "N is 1.\n", "✅ PASSED: ok\n")
	writeBlock(t, w, 2)
	require.NoError(t, w.Close())

	expected := "\n-----TEST1-----\nN is 1.\n✅ PASSED: ok\n\n----------------\n" +
		"\n-----TEST2-----\n\n----------------\n"
	assert.Equal(t, expected, buf.String())
	assert.Equal(t, 2, w.Blocks())
}

func TestWriterFlushesPerBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	w, err := Create(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.BeginCase(1))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\n-----TEST1-----\n", string(content), "start delimiter must be on disk before the case runs")

	require.NoError(t, w.WriteLine([]byte("line\n")))
	require.NoError(t, w.EndCase(1))

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\n-----TEST1-----\nline\n\n----------------\n", string(content))
}

func TestWriterTruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0644))

	w, err := Create(path)
	require.NoError(t, err)
	writeBlock(t, w, 1, "fresh\n")
	require.NoError(t, w.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "stale")
}

func TestWriterBlockMisuse(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})

	assert.Error(t, w.WriteLine([]byte("x")), "writing outside a block must fail")
	assert.Error(t, w.EndCase(1), "ending an unopened block must fail")

	require.NoError(t, w.BeginCase(1))
	assert.Error(t, w.BeginCase(2), "nested blocks are not allowed")
	assert.Error(t, w.EndCase(2), "ending the wrong block must fail")
	require.NoError(t, w.EndCase(1))
}

func TestCreateEmptyPath(t *testing.T) {
	_, err := Create("")
	require.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeBlock(t, w, 1, "a\n", "b\n")
	writeBlock(t, w, 2, "Kernel Panic!\n")
	writeBlock(t, w, 3)
	require.NoError(t, w.Close())

	blocks, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.Equal(t, 1, blocks[0].Index)
	assert.Equal(t, []string{"a", "b"}, blocks[0].Lines)
	assert.True(t, blocks[0].Complete)
	assert.Equal(t, []string{"Kernel Panic!"}, blocks[1].Lines)
	assert.Equal(t, 3, blocks[2].Index)
	assert.Empty(t, blocks[2].Lines)
}

func TestParseOutputWithoutTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeBlock(t, w, 1, "a\n", "no newline")
	require.NoError(t, w.Close())

	blocks, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"a", "no newline"}, blocks[0].Lines)
}

func TestParseIncompleteBlocks(t *testing.T) {
	input := strings.Join([]string{
		"",
		"-----TEST1-----",
		"partial",
		"-----TEST2-----",
		"ok",
		"",
		"----------------",
		"",
		"-----TEST3-----",
		"cut off",
	}, "\n")

	blocks, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.False(t, blocks[0].Complete)
	assert.Equal(t, []string{"partial"}, blocks[0].Lines)
	assert.True(t, blocks[1].Complete)
	assert.Equal(t, []string{"ok"}, blocks[1].Lines)
	assert.False(t, blocks[2].Complete)
	assert.Equal(t, []string{"cut off"}, blocks[2].Lines)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
