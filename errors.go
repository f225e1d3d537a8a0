package tester

import (
	"errors"
	"fmt"
)

// RuntimeError means the harness itself could not finish: the configuration
// was rejected, the result log could not be written or the test artifact
// would not start. The process exits with status 2.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError wraps err as a harness failure.
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError reports whether err stopped the harness.
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError is returned once every case has run and at least one of
// them printed a failure marker, or its output differs from the reference.
// The process exits with status 1.
type TestFailureError struct {
	Message string
	Failed  []int // case indices, ascending
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError reports the failed case indices.
func NewTestFailureError(message string, failed ...int) *TestFailureError {
	return &TestFailureError{Message: message, Failed: failed}
}

// IsTestFailureError reports whether err carries failed cases.
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
