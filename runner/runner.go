package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/kerntest/tester/types"
)

// CaseSink receives the output of each case as one delimited block.
// Blocks are always committed in ascending index order.
type CaseSink interface {
	BeginCase(index int) error
	WriteLine(line []byte) error
	EndCase(index int) error
}

// TestRunner defines the interface for running every numbered case
type TestRunner interface {
	// RunAll runs cases 1..N. Detected failures never stop the run; only an
	// error that prevents a case from running at all does. The results of the
	// cases committed before such an error are returned alongside it.
	RunAll(ctx context.Context, sink CaseSink) ([]*types.CaseResult, error)
}

// Config holds configuration for creating a new runner
type Config struct {
	Executor    CaseExecutor
	TotalTests  int
	Concurrency int // 1 runs strictly sequentially
	Progress    ProgressIndicator
	Log         log.Logger
}

// runner struct implements TestRunner interface
type runner struct {
	executor    CaseExecutor
	total       int
	concurrency int
	progress    ProgressIndicator
	log         log.Logger
}

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.TotalTests <= 0 {
		return nil, fmt.Errorf("total test count must be positive, got %d", cfg.TotalTests)
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}

	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("Very high concurrency requested", "concurrency", cfg.Concurrency,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}

	return &runner{
		executor:    cfg.Executor,
		total:       cfg.TotalTests,
		concurrency: cfg.Concurrency,
		progress:    cfg.Progress,
		log:         cfg.Log.New("component", "runner"),
	}, nil
}

// RunAll implements the TestRunner interface
func (r *runner) RunAll(ctx context.Context, sink CaseSink) ([]*types.CaseResult, error) {
	if sink == nil {
		return nil, errors.New("sink is required")
	}

	start := time.Now()
	r.log.Info("Running all tests", "total", r.total, "concurrency", r.concurrency)
	r.progress.StartRun(r.total)

	var (
		results []*types.CaseResult
		err     error
	)
	if r.concurrency == 1 {
		results, err = r.runSequential(ctx, sink)
	} else {
		results, err = r.runParallel(ctx, sink)
	}
	if err != nil {
		r.log.Error("Test run aborted", "completed", len(results), "total", r.total, "err", err)
		return results, err
	}

	r.progress.CompleteRun(r.total)
	r.log.Info("All tests ran", "total", r.total, "duration", time.Since(start))
	return results, nil
}

// runSequential runs one case at a time, streaming output straight to the sink.
func (r *runner) runSequential(ctx context.Context, sink CaseSink) ([]*types.CaseResult, error) {
	results := make([]*types.CaseResult, 0, r.total)
	for i := 1; i <= r.total; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r.progress.StartCase(i)
		if err := sink.BeginCase(i); err != nil {
			err = fmt.Errorf("failed to open block for test %d: %w", i, err)
			r.progress.AbortCase(i, err)
			return results, err
		}

		result, execErr := r.executor.Execute(ctx, i, sink.WriteLine)

		// Close the block even when the case could not run, so the log stays well formed
		if err := sink.EndCase(i); err != nil && execErr == nil {
			execErr = fmt.Errorf("failed to close block for test %d: %w", i, err)
		}
		if execErr != nil {
			r.progress.AbortCase(i, execErr)
			return results, execErr
		}

		r.progress.CompleteCase(result)
		results = append(results, result)
	}
	return results, nil
}

// pendingCase holds the buffered output of a case run by the worker pool
type pendingCase struct {
	done    chan struct{}
	started bool
	lines   [][]byte
	result  *types.CaseResult
	err     error
}

// errNotStarted marks a case skipped because a lower index could not be run
var errNotStarted = errors.New("not started")

// runParallel runs up to r.concurrency cases at once. Output is buffered per
// case and committed in index order, so the log has the same layout as a
// sequential run. When a case cannot be run, the cases below it still finish
// and are committed, the failed case gets a closed block and no case above it
// is started.
func (r *runner) runParallel(ctx context.Context, sink CaseSink) ([]*types.CaseResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	var firstFailure atomic.Int64
	firstFailure.Store(math.MaxInt64)

	pending := make([]*pendingCase, r.total)
	for i := range pending {
		pending[i] = &pendingCase{done: make(chan struct{})}
	}

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i, p := range pending {
			index, p := i+1, p
			g.Go(func() error {
				defer close(p.done)
				if int64(index) > firstFailure.Load() {
					p.err = errNotStarted
					return nil
				}
				if err := ctx.Err(); err != nil {
					p.err = err
					return nil
				}
				p.started = true
				p.result, p.err = r.executor.Execute(ctx, index, func(line []byte) error {
					p.lines = append(p.lines, line)
					return nil
				})
				if p.err != nil {
					lowerFailure(&firstFailure, int64(index))
				}
				return p.err
			})
		}
	}()

	results := make([]*types.CaseResult, 0, r.total)
	var commitErr error
	for i, p := range pending {
		index := i + 1
		<-p.done

		if !p.started {
			commitErr = p.err
			break
		}
		r.progress.StartCase(index)
		if err := commitCase(sink, index, p.lines); err != nil {
			r.progress.AbortCase(index, err)
			commitErr = err
			break
		}
		p.lines = nil
		if p.err != nil {
			r.progress.AbortCase(index, p.err)
			commitErr = p.err
			break
		}
		r.progress.CompleteCase(p.result)
		results = append(results, p.result)
	}
	cancel()

	<-dispatched
	// Errors are reported by the commit loop in index order
	_ = g.Wait()
	return results, commitErr
}

// lowerFailure records index as the first failed case unless a lower one
// already failed.
func lowerFailure(first *atomic.Int64, index int64) {
	for {
		cur := first.Load()
		if index >= cur || first.CompareAndSwap(cur, index) {
			return
		}
	}
}

func commitCase(sink CaseSink, index int, lines [][]byte) error {
	if err := sink.BeginCase(index); err != nil {
		return fmt.Errorf("failed to open block for test %d: %w", index, err)
	}
	for _, line := range lines {
		if err := sink.WriteLine(line); err != nil {
			return fmt.Errorf("failed to write output of test %d: %w", index, err)
		}
	}
	if err := sink.EndCase(index); err != nil {
		return fmt.Errorf("failed to close block for test %d: %w", index, err)
	}
	return nil
}
