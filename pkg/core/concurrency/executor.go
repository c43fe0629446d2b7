package concurrency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrExecutorClosed is returned when submitting to a shut down executor
	ErrExecutorClosed = errors.New("executor is closed")

	// ErrQueueFull is returned when the bounded queue rejects work (backpressure)
	ErrQueueFull = errors.New("executor queue is full")
)

// ExecutorStats provides statistics about executor performance
type ExecutorStats struct {
	QueuedWork       int64   // Current number of queued work items
	RunningWork      int64   // Work items currently executing
	Workers          int     // Number of worker goroutines
	CompletedWork    int64   // Total completed work items
	FailedWork       int64   // Completed work items that returned an error or panicked
	RejectedWork     int64   // Total rejected submissions (backpressure)
	QueueCapacity    int     // Maximum queue capacity
	QueueUtilization float64 // Queue utilization percentage
}

// Executor multiplexes work onto a fixed set of worker goroutines.
// The scenario runner dispatches commands through one executor and
// consumers offload their processing delays to another.
type Executor interface {
	// Submit queues work without blocking.
	// Returns ErrQueueFull if the queue is full or ErrExecutorClosed after Shutdown.
	Submit(work Work) error

	// SubmitWithTimeout queues work, waiting up to timeout for queue space.
	SubmitWithTimeout(work Work, timeout time.Duration) error

	// Run queues work and blocks until it has finished or ctx is done.
	// The work observes both ctx and the executor's own lifetime.
	Run(ctx context.Context, work Work) error

	// Shutdown stops accepting work and waits for queued work to drain
	// (up to ctx timeout, after which in-flight work is cancelled).
	Shutdown(ctx context.Context) error

	// Stats returns current executor statistics
	Stats() ExecutorStats
}
