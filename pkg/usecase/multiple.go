package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/playground/pkg/scope"
	"github.com/fluxorio/playground/pkg/task"
)

// MultipleTask fans out one sub-invocation per weight and aggregates them.
// Sub-invocation i is named "<Name>-i" and sleeps weight*Unit.
type MultipleTask struct {
	Name string
	Unit time.Duration

	// FailureThreshold fails any sub-invocation sleeping longer. Zero
	// disables it.
	FailureThreshold time.Duration

	Options []scope.Option
}

// Execute launches every sub-invocation in a child scope of ctx, waits for
// all of them and returns Aggregate of their results.
func (u MultipleTask) Execute(ctx context.Context, weights ...int64) task.Result {
	sc := scope.New(ctx, u.Name, u.Options...)

	handles := make([]*task.Deferred, len(weights))
	for i, w := range weights {
		weight := w
		sub := task.Task{
			Name:             fmt.Sprintf("%s-%d", u.Name, i+1),
			Steps:            []time.Duration{time.Duration(weight) * u.Unit},
			FailureThreshold: u.FailureThreshold,
		}
		handles[i] = sc.Async(sub.Name, func(ctx context.Context) task.Result {
			r := sub.Execute(ctx)
			if _, ok := r.(task.Success); ok {
				return task.Success{Value: weight}
			}
			return r
		})
	}

	results := make([]task.Result, len(handles))
	for i, d := range handles {
		results[i] = d.Outcome(ctx)
	}
	_ = sc.Wait()

	return Aggregate(results...)
}

// Aggregate folds sub-results: any Error gives an Error joining every
// cause; otherwise any Cancelled gives Cancelled; otherwise Success with
// the sum of the int64 values.
func Aggregate(results ...task.Result) task.Result {
	var (
		errs      []error
		cancelled *task.Cancelled
		sum       int64
	)
	for _, r := range results {
		switch v := r.(type) {
		case task.Success:
			if n, ok := v.Value.(int64); ok {
				sum += n
			}
		case task.Cancelled:
			if cancelled == nil {
				c := v
				cancelled = &c
			}
		case task.Error:
			errs = append(errs, v.Cause)
		default:
			panic(fmt.Sprintf("usecase: unexpected result %T", r))
		}
	}

	switch {
	case len(errs) > 0:
		return task.Error{Cause: errors.Join(errs...)}
	case cancelled != nil:
		return *cancelled
	default:
		return task.Success{Value: sum}
	}
}
