package usecase

import (
	"time"

	"github.com/fluxorio/playground/pkg/task"
)

// LongComputationTask is a long run of equal steps, cancellable between
// and during steps, optionally bounded by its own timeout.
type LongComputationTask struct {
	Name string
}

// ExecuteAsync launches steps*stepDelay of work on l. A positive timeout
// cancels the computation with a *task.TimeoutError once elapsed.
func (u LongComputationTask) ExecuteAsync(l task.Launcher, stepDelay time.Duration, steps int, timeout time.Duration) *task.Deferred {
	return task.Task{
		Name:    u.Name,
		Steps:   task.Repeat(stepDelay, steps),
		Timeout: timeout,
	}.ExecuteAsync(l)
}
