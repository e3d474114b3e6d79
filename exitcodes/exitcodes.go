// Package exitcodes defines the standard exit codes used by op-outcome.
package exitcodes

// Exit code constants used by op-outcome:
//
// * Success (0): the aggregated outcome is passing or indeterminate
// * TestFailure (1): at least one aggregated test failed or errored
// * RuntimeErr (2): configuration, I/O and other operational errors
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
