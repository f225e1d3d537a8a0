package runner

import "time"

// Case execution constants
const (
	// DefaultTotalTests is the number of cases in the reference test artifact
	DefaultTotalTests = 17

	// DefaultArtifact is the executable produced by the build's "tests" target
	DefaultArtifact = "./tests"

	// DefaultIndexEnvVar carries the case index to the artifact
	DefaultIndexEnvVar = "N"

	// DefaultConcurrency keeps the strictly sequential behaviour
	DefaultConcurrency = 1

	// MaxReasonableConcurrency caps the worker pool to avoid resource exhaustion
	MaxReasonableConcurrency = 32

	// killGracePeriod bounds how long Wait blocks on inherited pipes after a kill
	killGracePeriod = 5 * time.Second
)

// Failure markers emitted by the artifact's assertion helpers and by the kernel
const (
	AssertionFailureMarker = "ASSERTION FAILURE:"
	KernelPanicMarker      = "Kernel Panic!"
)

// DefaultFailureMarkers are matched when no markers are configured.
var DefaultFailureMarkers = []string{AssertionFailureMarker, KernelPanicMarker}
