// Package exitcodes defines the exit codes used by the tester binary.
package exitcodes

// Exit code constants used by tester.
//
// * Success (0): every test case ran and no failure marker was detected
// * TestFailure (1): at least one case was flagged failed, or a compare found differences
// * RuntimeErr (2): the harness itself could not complete (bad flags, launch failure, interrupt)
const (
	Success     = 0 // All cases clean
	TestFailure = 1 // Detected failures
	RuntimeErr  = 2 // Runtime errors or interrupts
)
