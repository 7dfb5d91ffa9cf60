// Package hook is the resilient entry point to the SimLib guest.
//
// A Hook wraps one bridge.Session behind a mutex. Every operation calls the
// session; on failure the Hook applies its ResetPolicy and calls once more.
// If that also fails the operation returns its sentinel instead of an error:
// InvalidSearchPattern, InvalidBearingEllipse, InvalidNavigationSolution,
// BadString or a negative scalar. Malformed input is rejected without a
// retry. An ellipse with no solution is a valid answer and passes through.
package hook
