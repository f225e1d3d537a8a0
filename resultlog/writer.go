// Package resultlog writes and reads the delimited result log produced by a
// harness run. Each test case owns one block:
//
//	\n-----TEST<i>-----\n
//	<raw captured output>
//	\n----------------\n
package resultlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	startDelimiterFormat = "-----TEST%d-----"
	EndDelimiter         = "----------------"
)

// StartDelimiter returns the line that opens the block of test index i.
func StartDelimiter(i int) string {
	return fmt.Sprintf(startDelimiterFormat, i)
}

// Writer is an append-only writer for result log blocks. Blocks are flushed
// to the underlying writer when they are closed.
type Writer struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	closer  io.Closer
	open    int // index of the open block, 0 when none
	written int // number of completed blocks
}

// NewWriter wraps an arbitrary writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{buf: bufio.NewWriter(w)}
}

// Create truncates (or creates) the log at path. The parent directory is
// created when missing.
func Create(path string) (*Writer, error) {
	if path == "" {
		return nil, errors.New("output path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create result log %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// BeginCase writes the start delimiter of block i and flushes it, so the
// marker is on disk before the artifact starts.
func (w *Writer) BeginCase(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open != 0 {
		return fmt.Errorf("cannot begin block %d: block %d is still open", i, w.open)
	}
	if _, err := fmt.Fprintf(w.buf, "\n%s\n", StartDelimiter(i)); err != nil {
		return err
	}
	w.open = i
	return w.buf.Flush()
}

// WriteLine appends raw captured bytes to the open block. The line is written
// unchanged, including its trailing newline if it has one.
func (w *Writer) WriteLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open == 0 {
		return errors.New("no open block")
	}
	_, err := w.buf.Write(line)
	return err
}

// EndCase writes the end delimiter of the open block and flushes.
func (w *Writer) EndCase(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open != i {
		return fmt.Errorf("cannot end block %d: open block is %d", i, w.open)
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.buf, "\n%s\n", EndDelimiter); err != nil {
		return err
	}
	w.open = 0
	w.written++
	return w.buf.Flush()
}

// Blocks returns the number of completed blocks.
func (w *Writer) Blocks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes pending bytes and closes the underlying file, if any.
// An open block is left unterminated.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.buf.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}
