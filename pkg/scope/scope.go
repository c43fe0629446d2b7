package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/playground/pkg/core/failfast"
	"github.com/fluxorio/playground/pkg/task"
)

// ErrScopeClosed is the Error result of a job launched after Wait settled
// its scope.
var ErrScopeClosed = errors.New("scope closed")

// Scope is a cancellation and lifetime boundary owning jobs and child
// scopes. A Scope is used once: after Wait returns it accepts no new jobs.
type Scope struct {
	name    string
	ctx     context.Context
	cancel  context.CancelCauseFunc
	cfg     config
	logger  *slog.Logger
	started time.Time

	state    atomic.Uint32
	stopHook func() bool

	mu       sync.Mutex
	idle     *sync.Cond
	active   int
	closed   bool
	jobs     []*task.Deferred
	children []*Scope

	errOnce  sync.Once
	firstErr error

	waitOnce sync.Once
	waitErr  error
}

// New creates a root scope whose context derives from parent.
func New(parent context.Context, name string, opts ...Option) *Scope {
	failfast.NotNil(parent, "parent context")
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancelCause(parent)
	return newScope(ctx, cancel, name, cfg)
}

func newScope(ctx context.Context, cancel context.CancelCauseFunc, name string, cfg config) *Scope {
	s := &Scope{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  cfg.logger.With("scope", name),
		started: time.Now(),
	}
	s.idle = sync.NewCond(&s.mu)
	s.stopHook = context.AfterFunc(ctx, s.onCancel)
	return s
}

// Name returns the scope name. Child scope names are slash-separated paths.
func (s *Scope) Name() string { return s.name }

// Context returns the scope context. It is done once the scope is
// cancelled or, after Wait, released.
func (s *Scope) Context() context.Context { return s.ctx }

// State returns the current lifecycle state.
func (s *Scope) State() State { return State(s.state.Load()) }

// Child derives a scope that is cancelled with s and waited by s.Wait.
// Options not given are inherited from s, except fail-fast.
func (s *Scope) Child(name string, opts ...Option) *Scope {
	ctx, cancel := context.WithCancelCause(s.ctx)
	return s.adopt(ctx, cancel, name, opts)
}

func (s *Scope) adopt(ctx context.Context, cancel context.CancelCauseFunc, name string, opts []Option) *Scope {
	cfg := s.cfg
	cfg.failFast = false
	for _, opt := range opts {
		opt(&cfg)
	}
	child := newScope(ctx, cancel, s.name+"/"+name, cfg)

	s.mu.Lock()
	if !s.closed {
		s.children = append(s.children, child)
	}
	s.mu.Unlock()
	return child
}

// Async launches fn as a job of s and returns its handle. The job context
// derives from the scope context; cancelling the handle cancels only that
// job. A panic in fn becomes an Error result carrying a *PanicError.
func (s *Scope) Async(name string, fn func(ctx context.Context) task.Result) *task.Deferred {
	failfast.NotNil(fn, "job function")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return task.Resolved(name, task.Error{Cause: fmt.Errorf("launch %q in %q: %w", name, s.name, ErrScopeClosed)})
	}
	ctx, cancel := context.WithCancelCause(s.ctx)
	d := task.NewDeferred(name, cancel)
	s.jobs = append(s.jobs, d)
	s.active++
	s.mu.Unlock()

	go s.run(ctx, cancel, d, fn)
	return d
}

// Go launches fn as a job reporting only an error. A nil error is a
// Success with no value; cancellation errors become Cancelled.
func (s *Scope) Go(name string, fn func(ctx context.Context) error) *task.Deferred {
	return s.Async(name, func(ctx context.Context) task.Result {
		if err := fn(ctx); err != nil {
			return task.Fail(err)
		}
		return task.Success{}
	})
}

func (s *Scope) run(ctx context.Context, cancel context.CancelCauseFunc, d *task.Deferred, fn func(context.Context) task.Result) {
	defer s.release()
	defer cancel(nil)

	ctx, span := s.cfg.tracer.Start(ctx, d.Name(),
		trace.WithAttributes(
			attribute.String("scope", s.name),
			attribute.String("job.id", d.ID()),
		))

	r := s.exec(ctx, d.Name(), fn)
	d.Complete(r)

	span.SetAttributes(attribute.String("job.state", r.State().String()))
	switch v := r.(type) {
	case task.Success:
		span.SetStatus(codes.Ok, "")
	case task.Cancelled:
		span.SetStatus(codes.Unset, "cancelled")
	case task.Error:
		span.RecordError(v.Cause)
		span.SetStatus(codes.Error, v.Cause.Error())
		s.recordError(d.Name(), v.Cause)
	default:
		panic(fmt.Sprintf("scope: unexpected result %T", r))
	}
	span.End()

	s.cfg.observer.JobFinished(s.name, d.Name(), r, d.Elapsed())
}

func (s *Scope) exec(ctx context.Context, name string, fn func(context.Context) task.Result) (r task.Result) {
	defer func() {
		if v := recover(); v != nil {
			pe := newPanicError(name, v)
			s.logger.Error("job panicked", "job", name, "panic", v, "stack", pe.Stack)
			r = task.Error{Cause: pe}
		}
	}()
	r = fn(ctx)
	if r == nil {
		r = task.Error{Cause: fmt.Errorf("job %q returned no result", name)}
	}
	return r
}

func (s *Scope) release() {
	s.mu.Lock()
	s.active--
	if s.active == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Scope) recordError(job string, err error) {
	s.logger.Debug("job failed", "job", job, "error", err)
	if !s.cfg.failFast {
		return
	}
	s.errOnce.Do(func() {
		s.firstErr = fmt.Errorf("job %q: %w", job, err)
		s.cancel(fmt.Errorf("%w: sibling %q failed", task.ErrCancelled, job))
	})
}

// Cancel cancels every still-running job and child scope. A nil cause is
// task.ErrCancelled. Only the first cancellation takes effect.
func (s *Scope) Cancel(cause error) {
	if cause == nil {
		cause = task.ErrCancelled
	}
	s.cancel(cause)
}

func (s *Scope) onCancel() {
	if s.state.CompareAndSwap(uint32(Active), uint32(Cancelling)) {
		s.logger.Debug("scope cancelling", "cause", context.Cause(s.ctx))
	}
}

// Wait blocks until every job and child scope has finished, then settles
// the final state and releases the scope context. It is idempotent.
//
// The scope ends Failed when a fail-fast error occurred or a job ended in
// Error without anyone observing its result; Cancelled when it was
// cancelled before finishing; Completed otherwise. The returned error is
// nil only for Completed.
func (s *Scope) Wait() error {
	s.waitOnce.Do(s.settle)
	return s.waitErr
}

// interrupted reports whether any job of s or its children ended Cancelled.
func (s *Scope) interrupted() bool {
	s.mu.Lock()
	jobs, children := s.jobs, s.children
	s.mu.Unlock()

	for _, d := range jobs {
		if r, ok := d.Result(); ok && r.State() == task.StateCancelled {
			return true
		}
	}
	for _, child := range children {
		if child.interrupted() {
			return true
		}
	}
	return false
}

func (s *Scope) settle() {
	s.mu.Lock()
	for s.active > 0 {
		s.idle.Wait()
	}
	s.closed = true
	children := s.children
	jobs := s.jobs
	s.mu.Unlock()

	for _, child := range children {
		_ = child.Wait()
	}

	var final State
	switch {
	case s.firstErr != nil:
		final, s.waitErr = Failed, s.firstErr
	case s.ctx.Err() != nil:
		final, s.waitErr = Cancelled, task.CauseOf(s.ctx)
	default:
		var unobserved []error
		for _, d := range jobs {
			if d.Observed() {
				continue
			}
			if r, _ := d.Outcome(context.Background()).(task.Error); r.Cause != nil {
				unobserved = append(unobserved, fmt.Errorf("job %q: %w", d.Name(), r.Cause))
			}
		}
		if len(unobserved) > 0 {
			final, s.waitErr = Failed, errors.Join(unobserved...)
		} else {
			final = Completed
		}
	}

	s.stopHook()
	s.state.Store(uint32(final))
	s.cancel(nil)

	elapsed := time.Since(s.started)
	s.cfg.observer.ScopeFinished(s.name, final, elapsed)
	if final == Failed {
		s.logger.Warn("scope finished", "state", final.String(), "elapsed", elapsed, "error", s.waitErr)
	} else {
		s.logger.Debug("scope finished", "state", final.String(), "elapsed", elapsed)
	}
}
