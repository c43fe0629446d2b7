package usecase

import (
	"context"
	"time"

	"github.com/fluxorio/playground/pkg/task"
)

// StepTask runs three (or any number of) timed steps. With a failure
// threshold set it is the error task: a step longer than the threshold
// fails it.
type StepTask struct {
	Name             string
	FailureThreshold time.Duration
}

// NewSequentialTask returns a step task meant to be awaited inline.
func NewSequentialTask(name string) StepTask { return StepTask{Name: name} }

// NewParallelTask returns a step task meant to be launched with ExecuteAsync.
func NewParallelTask(name string) StepTask { return StepTask{Name: name} }

// NewErrorTask returns a step task failing on any step over threshold.
func NewErrorTask(name string, threshold time.Duration) StepTask {
	return StepTask{Name: name, FailureThreshold: threshold}
}

func (u StepTask) task(steps []time.Duration) task.Task {
	return task.Task{
		Name:             u.Name,
		Steps:            steps,
		FailureThreshold: u.FailureThreshold,
	}
}

// Execute runs the steps on the calling goroutine.
func (u StepTask) Execute(ctx context.Context, steps ...time.Duration) task.Result {
	return u.task(steps).Execute(ctx)
}

// ExecuteAsync launches the steps as a job of l.
func (u StepTask) ExecuteAsync(l task.Launcher, steps ...time.Duration) *task.Deferred {
	return u.task(steps).ExecuteAsync(l)
}
