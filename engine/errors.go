// Package engine groups the processing engines of the intent verification
// pipeline and defines the error taxonomy shared between them.
package engine

import (
	"errors"
	"fmt"
)

// InvalidDeadlineError is returned when an intent is submitted with a deadline
// that is not strictly in the future or exceeds the maximum verification
// window. Submission-time validation failure, returned synchronously.
type InvalidDeadlineError struct {
	err error
}

func NewInvalidDeadlineErrorf(msg string, args ...interface{}) error {
	return InvalidDeadlineError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidDeadlineError) Error() string { return e.err.Error() }
func (e InvalidDeadlineError) Unwrap() error { return e.err }

// IsInvalidDeadlineError returns whether err is or wraps an InvalidDeadlineError.
func IsInvalidDeadlineError(err error) bool {
	var target InvalidDeadlineError
	return errors.As(err, &target)
}

// InvalidTargetError is returned when an intent is submitted without a target
// contract. Submission-time validation failure, returned synchronously.
type InvalidTargetError struct {
	err error
}

func NewInvalidTargetErrorf(msg string, args ...interface{}) error {
	return InvalidTargetError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidTargetError) Error() string { return e.err.Error() }
func (e InvalidTargetError) Unwrap() error { return e.err }

func IsInvalidTargetError(err error) bool {
	var target InvalidTargetError
	return errors.As(err, &target)
}

// UnknownIntentError is returned by queries and transitions referencing an
// intent id that is neither active nor retained.
type UnknownIntentError struct {
	err error
}

func NewUnknownIntentErrorf(msg string, args ...interface{}) error {
	return UnknownIntentError{err: fmt.Errorf(msg, args...)}
}

func (e UnknownIntentError) Error() string { return e.err.Error() }
func (e UnknownIntentError) Unwrap() error { return e.err }

func IsUnknownIntentError(err error) bool {
	var target UnknownIntentError
	return errors.As(err, &target)
}

// InvalidTransitionError is returned when a caller attempts an operation that
// is illegal for the intent's current lifecycle state, e.g. confirming
// execution on a Blocked intent.
type InvalidTransitionError struct {
	err error
}

func NewInvalidTransitionErrorf(msg string, args ...interface{}) error {
	return InvalidTransitionError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidTransitionError) Error() string { return e.err.Error() }
func (e InvalidTransitionError) Unwrap() error { return e.err }

func IsInvalidTransitionError(err error) bool {
	var target InvalidTransitionError
	return errors.As(err, &target)
}

// OutdatedInputError marks inputs that arrived too late to matter: results for
// superseded verification rounds, events for intents that already reached a
// terminal state. These are expected races in an asynchronous system and are
// absorbed (logged, not surfaced) by the processing engines.
type OutdatedInputError struct {
	err error
}

func NewOutdatedInputErrorf(msg string, args ...interface{}) error {
	return OutdatedInputError{err: fmt.Errorf(msg, args...)}
}

func (e OutdatedInputError) Error() string { return e.err.Error() }
func (e OutdatedInputError) Unwrap() error { return e.err }

func IsOutdatedInputError(err error) bool {
	var target OutdatedInputError
	return errors.As(err, &target)
}
