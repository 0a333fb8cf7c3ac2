// Package txn holds the retry policy that wraps transactional units of
// work.  Storage code marks coordination failures (deadlocks, lock wait
// timeouts) as transient; RetryOnce reruns such a unit exactly one more
// time and reports a second failure as fatal.
package txn

import (
	"context"
	"errors"
)

// ErrTransient is matched by every error marked with Transient.
var ErrTransient = errors.New("transient storage failure")

// TransientError wraps a storage error that may succeed when the whole
// unit of work is replayed.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransient) match any TransientError.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient marks err as transient.  A nil error stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Unit is a transactional unit of work.  It must be safe to run again
// from scratch after a failed attempt.
type Unit func(ctx context.Context) error

// RetryCallback is invoked before the retry with the first failure.
type RetryCallback func(err error)

// RetryOnce runs unit and, if it fails with a transient error, runs it
// once more.  Business errors are returned untouched on the first
// attempt.  A cancelled context is never retried.
func RetryOnce(ctx context.Context, unit Unit, onRetry RetryCallback) error {
	err := unit(ctx)
	if err == nil || !IsTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	if onRetry != nil {
		onRetry(err)
	}
	return unit(ctx)
}
