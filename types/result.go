package types

import (
	"fmt"
	"time"
)

// TestStatus represents the possible states of a test case execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusError TestStatus = "error"
)

// CaseResult captures the outcome of a single numbered test case.
// The captured output itself is streamed to the result log and is not kept here.
type CaseResult struct {
	Index         int           // 1-based test index passed to the artifact
	Status        TestStatus    // pass unless a failure signal was detected
	MatchedMarker string        // Failure marker that fired, if any
	MatchedLine   string        // First line that contained a failure marker
	ExitCode      int           // Exit status of the artifact process
	Lines         int           // Number of captured output lines
	Duration      time.Duration // Wall time of the artifact process
	TimedOut      bool          // The case was killed after exceeding its timeout
	Error         error         // Why the case failed, if it did
}

// Failed reports whether the case was flagged as failed.
func (r *CaseResult) Failed() bool {
	return r.Status != TestStatusPass
}

// RunStats tracks aggregate counters for a run
type RunStats struct {
	Total     int
	Passed    int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// RunResult captures the complete outcome of one harness invocation
type RunResult struct {
	RunID    string
	Mode     Mode
	Output   string // Path of the result log
	Cases    []*CaseResult
	Status   TestStatus
	Duration time.Duration
	Stats    RunStats
}

// NewRunResult aggregates case results into a RunResult. Cases must already be
// in ascending index order.
func NewRunResult(runID string, mode Mode, output string, cases []*CaseResult, start time.Time) *RunResult {
	res := &RunResult{
		RunID:  runID,
		Mode:   mode,
		Output: output,
		Cases:  cases,
		Status: TestStatusPass,
		Stats:  RunStats{StartTime: start},
	}
	for _, c := range cases {
		res.Stats.Total++
		if c.Failed() {
			res.Stats.Failed++
			res.Status = TestStatusFail
		} else {
			res.Stats.Passed++
		}
	}
	res.Stats.EndTime = time.Now()
	res.Duration = res.Stats.EndTime.Sub(start)
	return res
}

// FailedIndices returns the indices of every failed case, ascending.
func (r *RunResult) FailedIndices() []int {
	var out []int
	for _, c := range r.Cases {
		if c.Failed() {
			out = append(out, c.Index)
		}
	}
	return out
}

func (r *RunResult) String() string {
	return fmt.Sprintf("Run %s (%s): %d cases, %d passed, %d failed, status=%s",
		r.RunID, r.Mode, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Status)
}
