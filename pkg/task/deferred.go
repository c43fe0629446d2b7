package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Deferred is the handle of one asynchronously running unit of work. Its
// completion slot is written once; the first Complete wins and every later
// call is ignored.
type Deferred struct {
	id       string
	name     string
	started  time.Time
	finished time.Time

	cancel     context.CancelCauseFunc
	cancelOnce sync.Once

	once     sync.Once
	done     chan struct{}
	result   Result
	observed atomic.Bool
}

// NewDeferred creates a pending handle. cancel is invoked at most once, by
// Cancel; it may be nil for handles that cannot be cancelled.
func NewDeferred(name string, cancel context.CancelCauseFunc) *Deferred {
	return &Deferred{
		id:      uuid.NewString(),
		name:    name,
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Resolved returns a handle whose slot already holds r.
func Resolved(name string, r Result) *Deferred {
	d := NewDeferred(name, nil)
	d.Complete(r)
	return d
}

func (d *Deferred) ID() string   { return d.id }
func (d *Deferred) Name() string { return d.name }

// Elapsed is the time since launch, or the run time once completed.
func (d *Deferred) Elapsed() time.Duration {
	if d.Completed() {
		return d.finished.Sub(d.started)
	}
	return time.Since(d.started)
}

// Complete writes r into the slot. It reports whether this call won.
func (d *Deferred) Complete(r Result) bool {
	if r == nil {
		panic("task: Complete called with nil result")
	}
	won := false
	d.once.Do(func() {
		d.result = r
		d.finished = time.Now()
		won = true
		close(d.done)
	})
	return won
}

// Done is closed once the slot is written.
func (d *Deferred) Done() <-chan struct{} { return d.done }

// Completed reports whether the slot is written.
func (d *Deferred) Completed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Result returns the slot value without blocking and marks it observed.
func (d *Deferred) Result() (Result, bool) {
	select {
	case <-d.done:
		d.observed.Store(true)
		return d.result, true
	default:
		return nil, false
	}
}

// Observed reports whether anyone has read the result. A scope treats an
// unobserved Error as a failure of the scope itself.
func (d *Deferred) Observed() bool { return d.observed.Load() }

// Cancel requests cancellation of this unit only. It is a no-op once the
// slot is written or when called again.
func (d *Deferred) Cancel() {
	d.CancelWithCause(ErrCancelled)
}

// CancelWithCause is Cancel with a specific cause, e.g. a *TimeoutError.
func (d *Deferred) CancelWithCause(cause error) {
	if d.cancel == nil || d.Completed() {
		return
	}
	d.cancelOnce.Do(func() { d.cancel(cause) })
}

// Await blocks until the slot is written or ctx is done. Success and
// Cancelled are returned as values; an Error result is returned as its
// cause. If ctx ends first the normalized cause of ctx is returned, unless
// the slot was written in the meantime, in which case the slot wins.
func (d *Deferred) Await(ctx context.Context) (Result, error) {
	select {
	case <-d.done:
	case <-ctx.Done():
		if !d.Completed() {
			return nil, CauseOf(ctx)
		}
	}
	d.observed.Store(true)
	return Unwrap(d.result)
}

// AwaitOrReturn is Await with cancellation turned into fallback: the
// awaited unit was cancelled or timed out, or the caller's ctx was. Error
// results still propagate.
func (d *Deferred) AwaitOrReturn(ctx context.Context, fallback Result) (Result, error) {
	r, err := d.Await(ctx)
	if err != nil {
		if IsCancellation(err) {
			return fallback, nil
		}
		return nil, err
	}
	if _, ok := r.(Cancelled); ok {
		return fallback, nil
	}
	return r, nil
}

// Outcome blocks like Await but returns the raw result, Error included.
// If ctx ends first it returns Cancelled with the cause of ctx.
func (d *Deferred) Outcome(ctx context.Context) Result {
	select {
	case <-d.done:
	case <-ctx.Done():
		if !d.Completed() {
			return Cancelled{Cause: CauseOf(ctx)}
		}
	}
	d.observed.Store(true)
	return d.result
}
