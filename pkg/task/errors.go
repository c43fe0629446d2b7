package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCancelled is the cancellation failure. Explicit cancels carry it as
	// the context cause; timeouts carry a *TimeoutError, which matches it too.
	ErrCancelled = errors.New("task cancelled")

	// ErrTaskFailure matches every *Failure via errors.Is.
	ErrTaskFailure = errors.New("task failed")
)

// Failure is an injected or simulated business error raised by a task.
type Failure struct {
	Task  string
	Cause error
}

func (e *Failure) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("task %q failed", e.Task)
	}
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Cause)
}

func (e *Failure) Unwrap() error { return e.Cause }

func (e *Failure) Is(target error) bool { return target == ErrTaskFailure }

// TimeoutError is the cancellation cause installed by a timeout.
// errors.Is(err, ErrCancelled) holds for it, so a catch site that only
// cares about cancellation does not need to tell the two apart.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v", e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrCancelled || target == context.DeadlineExceeded
}

// IsCancellation reports whether err is a cancellation, explicit or by timeout.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsTimeout reports whether err came from a timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// Normalize maps bare context errors onto the task taxonomy so catch sites
// only have to know ErrCancelled and *TimeoutError.
func Normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{}
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	default:
		return err
	}
}

// CauseOf returns the normalized cancellation cause of a done context,
// or nil while ctx is still live.
func CauseOf(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return Normalize(context.Cause(ctx))
}
