package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Name      string       // Used in logs
	Workers   int          // Number of worker goroutines
	QueueSize int          // Maximum queue size (bounded for backpressure)
	Logger    *slog.Logger // Defaults to slog.Default()
}

// DefaultExecutorConfig returns default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Name:      "executor",
		Workers:   4,
		QueueSize: 64,
	}
}

// defaultExecutor implements Executor with a bounded queue and a fixed
// number of workers.
type defaultExecutor struct {
	name      string
	workChan  chan Work
	workers   int
	queueSize int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	logger    *slog.Logger

	queued    atomic.Int64
	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewExecutor creates a new Executor and starts its workers
func NewExecutor(ctx context.Context, config ExecutorConfig) Executor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 64
	}
	if config.Name == "" {
		config.Name = "executor"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)

	exec := &defaultExecutor{
		name:      config.Name,
		workChan:  make(chan Work, config.QueueSize),
		workers:   config.Workers,
		queueSize: config.QueueSize,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With("executor", config.Name),
	}

	exec.wg.Add(exec.workers)
	for i := 0; i < exec.workers; i++ {
		go exec.worker(i)
	}

	return exec
}

func (e *defaultExecutor) worker(id int) {
	defer e.wg.Done()

	for work := range e.workChan {
		e.queued.Add(-1)
		e.execute(id, work)
	}
}

func (e *defaultExecutor) execute(id int, work Work) {
	e.running.Add(1)
	defer e.running.Add(-1)
	defer e.completed.Add(1)

	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			e.logger.Error("work panicked", "worker", id, "work", work.Name(), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := work.Execute(e.ctx); err != nil {
		e.failed.Add(1)
		e.logger.Debug("work failed", "worker", id, "work", work.Name(), "error", err)
	}
}

// Submit implements Executor interface
func (e *defaultExecutor) Submit(work Work) error {
	if work == nil {
		return fmt.Errorf("work cannot be nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}

	select {
	case e.workChan <- work:
		e.queued.Add(1)
		return nil
	default:
		e.rejected.Add(1)
		return ErrQueueFull
	}
}

// SubmitWithTimeout implements Executor interface
func (e *defaultExecutor) SubmitWithTimeout(work Work, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.enqueue(ctx, work); err != nil {
		if ctx.Err() != nil {
			e.rejected.Add(1)
			return fmt.Errorf("submit timeout after %v: %w", timeout, ErrQueueFull)
		}
		return err
	}
	return nil
}

func (e *defaultExecutor) enqueue(ctx context.Context, work Work) error {
	if work == nil {
		return fmt.Errorf("work cannot be nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}

	select {
	case e.workChan <- work:
		e.queued.Add(1)
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Run implements Executor interface
func (e *defaultExecutor) Run(ctx context.Context, work Work) error {
	if work == nil {
		return fmt.Errorf("work cannot be nil")
	}

	done := make(chan error, 1)
	wrapped := NewNamedWork(work.Name(), func(execCtx context.Context) error {
		runCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		stop := context.AfterFunc(execCtx, func() { cancel(context.Cause(execCtx)) })
		defer stop()

		err := work.Execute(runCtx)
		done <- err
		return err
	})

	if err := e.enqueue(ctx, wrapped); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Shutdown implements Executor interface
func (e *defaultExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.workChan)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// Stats implements Executor interface
func (e *defaultExecutor) Stats() ExecutorStats {
	queued := e.queued.Load()
	utilization := float64(queued) / float64(e.queueSize) * 100.0
	if utilization > 100.0 {
		utilization = 100.0
	}

	return ExecutorStats{
		QueuedWork:       queued,
		RunningWork:      e.running.Load(),
		Workers:          e.workers,
		CompletedWork:    e.completed.Load(),
		FailedWork:       e.failed.Load(),
		RejectedWork:     e.rejected.Load(),
		QueueCapacity:    e.queueSize,
		QueueUtilization: utilization,
	}
}
