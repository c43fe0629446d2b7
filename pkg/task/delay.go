package task

import (
	"context"
	"time"
)

// Delay suspends for d or until ctx is done, whichever comes first. It is
// the suspension point simulated steps are built from. On cancellation it
// returns CauseOf(ctx).
func Delay(ctx context.Context, d time.Duration) error {
	if err := CauseOf(ctx); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return CauseOf(ctx)
	}
}

// WithTimeout derives a context that is cancelled with a *TimeoutError
// cause once d elapses. A non-positive d returns a plain cancellable child.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, &TimeoutError{After: d})
}
