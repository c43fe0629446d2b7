package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxorio/playground/pkg/repository"
	"github.com/fluxorio/playground/pkg/task"
)

// ExceptionsTask always fails, each entry point at a different boundary:
// Execute returns the failure directly, ExecuteAsync through its handle,
// and ExecuteWithRepositoryAsync surfaces a repository I/O error.
type ExceptionsTask struct {
	Name string
	Repo repository.Repository
}

func (u ExceptionsTask) failing(steps []time.Duration) task.Task {
	return task.Task{Name: u.Name, Steps: steps, Fail: true}
}

// Execute runs the steps and returns the resulting failure as an error.
func (u ExceptionsTask) Execute(ctx context.Context, steps ...time.Duration) (task.Result, error) {
	return task.Unwrap(u.failing(steps).Execute(ctx))
}

// ExecuteAsync launches the failing steps as a job of l.
func (u ExceptionsTask) ExecuteAsync(l task.Launcher, steps ...time.Duration) *task.Deferred {
	return u.failing(steps).ExecuteAsync(l)
}

// ExecuteWithRepositoryAsync runs the steps, then fetches from the
// repository. A fetch error becomes the job's Error result.
func (u ExceptionsTask) ExecuteWithRepositoryAsync(l task.Launcher, steps ...time.Duration) *task.Deferred {
	t := task.Task{Name: u.Name, Steps: steps}
	return l.Async(u.Name, func(ctx context.Context) task.Result {
		if r := t.Execute(ctx); r.State() != task.StateCompleted {
			return r
		}
		v, err := u.Repo.Fetch(ctx)
		if err != nil {
			return task.Fail(fmt.Errorf("%s: %w", u.Name, err))
		}
		return task.Success{Value: v}
	})
}
