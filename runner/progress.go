package runner

import (
	"fmt"
	"io"
	"sync"

	"github.com/kerntest/tester/types"
)

// Console messages printed for each case
const (
	failedMessage  = "\t\tFailed!?"
	cleanMessage   = "\t\tNo errors encountered, compare with ref to ensure correctness."
	abortedMessage = "\t\tCould not run"
)

// ProgressIndicator interface for UI updates
type ProgressIndicator interface {
	StartRun(totalTests int)
	StartCase(index int)
	CompleteCase(result *types.CaseResult)
	// AbortCase ends the line of a case that could not be run
	AbortCase(index int, err error)
	CompleteRun(totalTests int)
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(totalTests int)               {}
func (n *noOpProgressIndicator) StartCase(index int)                   {}
func (n *noOpProgressIndicator) CompleteCase(result *types.CaseResult) {}
func (n *noOpProgressIndicator) AbortCase(index int, err error)        {}
func (n *noOpProgressIndicator) CompleteRun(totalTests int)            {}

// consoleProgressIndicator prints one line per case:
//
//	* Run test 2...		Failed!?
type consoleProgressIndicator struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleProgressIndicator creates a progress indicator writing to out
func NewConsoleProgressIndicator(out io.Writer) ProgressIndicator {
	return &consoleProgressIndicator{out: out}
}

func (c *consoleProgressIndicator) StartRun(totalTests int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, "Running all tests...")
}

func (c *consoleProgressIndicator) StartCase(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "* Run test %d...", index)
}

func (c *consoleProgressIndicator) CompleteCase(result *types.CaseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result.Failed() {
		fmt.Fprintln(c.out, failedMessage)
		return
	}
	fmt.Fprintln(c.out, cleanMessage)
}

func (c *consoleProgressIndicator) AbortCase(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s (%v)\n", abortedMessage, err)
}

func (c *consoleProgressIndicator) CompleteRun(totalTests int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "All tests ran (N=%d).\n", totalTests)
}
