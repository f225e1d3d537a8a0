// Package runner executes the numbered cases of a prebuilt test artifact.
//
// The main components are:
//   - Detector: Flags a case as failed when a captured line contains a failure marker
//   - CaseExecutor: Spawns the artifact for one index and streams its combined output
//   - TestRunner: Iterates indices 1..N, sequentially or through a bounded worker pool,
//     committing each case's output to a CaseSink in ascending index order
//   - ProgressIndicator: Reports per-case progress on the console
package runner
