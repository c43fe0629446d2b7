package usecase

import (
	"context"

	"github.com/fluxorio/playground/pkg/legacy"
	"github.com/fluxorio/playground/pkg/task"
)

// CallbackTask adapts a callback-style legacy.Service into a blocking call.
// The first callback to fire completes the call; later ones are ignored.
type CallbackTask struct {
	Name    string
	Service legacy.Service
}

// Execute starts the service and waits for its first callback. Success is
// returned as a value; a failure is returned as an error wrapping a
// *task.Failure; a cancel callback is returned as task.ErrCancelled.
// If ctx ends first its cancellation cause is returned.
func (u CallbackTask) Execute(ctx context.Context, input string) (task.Result, error) {
	slot := task.NewDeferred(u.Name, nil)

	u.Service.Start(input, legacy.Callback{
		OnSuccess: func(value string) {
			slot.Complete(task.Success{Value: value})
		},
		OnFailure: func(err error) {
			slot.Complete(task.Error{Cause: &task.Failure{Task: u.Name, Cause: err}})
		},
		OnCancel: func() {
			slot.Complete(task.Cancelled{Cause: task.ErrCancelled})
		},
	})

	r, err := slot.Await(ctx)
	if err != nil {
		return nil, err
	}
	if c, ok := r.(task.Cancelled); ok {
		return nil, c.Cause
	}
	return r, nil
}
