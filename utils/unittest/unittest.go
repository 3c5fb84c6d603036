// Package unittest provides test helpers and fixtures shared across the
// repository's test suites.
package unittest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Logger returns a zerolog logger for tests. Set verbose to see engine logs
// while debugging a test.
func Logger() zerolog.Logger {
	return zerolog.Nop()
}

// RequireReturnsBefore requires that the given function returns before the
// duration expires.
func RequireReturnsBefore(t *testing.T, f func(), duration time.Duration, message string) {
	done := make(chan struct{})
	go func() {
		f()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(duration):
		require.Fail(t, "function did not return on time: "+message)
	}
}

// RequireCloseBefore requires that the given channel closes before the
// duration expires.
func RequireCloseBefore(t *testing.T, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-c:
	case <-time.After(duration):
		require.Fail(t, "channel did not close on time: "+message)
	}
}

// RequireNotClosed requires that the channel is not closed right now.
func RequireNotClosed(t *testing.T, c <-chan struct{}, message string) {
	select {
	case <-c:
		require.Fail(t, "channel was unexpectedly closed: "+message)
	default:
	}
}

// RequireEventually requires that the condition becomes true before the
// duration expires, polling at a small interval.
func RequireEventually(t *testing.T, condition func() bool, duration time.Duration, message string) {
	require.Eventually(t, condition, duration, 5*time.Millisecond, message)
}
