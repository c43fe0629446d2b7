package concurrency

import (
	"context"
)

// Work is a unit of leaf work run by an Executor.
// It must return promptly once ctx is done.
type Work interface {
	// Execute performs the work
	Execute(ctx context.Context) error

	// Name returns a human-readable name for logs and metrics
	Name() string
}

// WorkFunc is a function type that implements Work
type WorkFunc func(ctx context.Context) error

// Execute implements Work interface for WorkFunc
func (f WorkFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name returns a default name for WorkFunc
func (f WorkFunc) Name() string {
	return "WorkFunc"
}

// NamedWork wraps a WorkFunc with a custom name
type NamedWork struct {
	name string
	work WorkFunc
}

// NewNamedWork creates a new NamedWork
func NewNamedWork(name string, work WorkFunc) *NamedWork {
	return &NamedWork{
		name: name,
		work: work,
	}
}

// Execute implements Work interface
func (nw *NamedWork) Execute(ctx context.Context) error {
	return nw.work(ctx)
}

// Name returns the work name
func (nw *NamedWork) Name() string {
	return nw.name
}
