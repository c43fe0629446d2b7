package task

import (
	"context"
	"fmt"
	"time"
)

// Launcher starts fn as a tracked child unit and returns its handle.
// scope.Scope is the production implementation.
type Launcher interface {
	Async(name string, fn func(ctx context.Context) Result) *Deferred
}

// Task simulates a unit of work as a sequence of timed steps.
type Task struct {
	Name  string
	Steps []time.Duration

	// FailureThreshold makes any step longer than it fail. Zero disables it.
	FailureThreshold time.Duration

	// Fail forces a Failure after the steps complete.
	Fail bool

	// Timeout bounds the whole execution. Zero means no bound.
	Timeout time.Duration

	// OnStep, if set, is called after each completed step.
	OnStep func(step int, d time.Duration)
}

// Execute runs the steps on the calling goroutine. A step longer than the
// failure threshold runs until the threshold elapses and then yields
// Error(*Failure); cancellation observed
// at a step boundary or during a step yields Cancelled. On success the value
// is the total simulated duration.
func (t Task) Execute(ctx context.Context) Result {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var total time.Duration
	for i, step := range t.Steps {
		if err := CauseOf(ctx); err != nil {
			return Cancelled{Cause: err}
		}
		if t.FailureThreshold > 0 && step > t.FailureThreshold {
			if err := Delay(ctx, t.FailureThreshold); err != nil {
				return Cancelled{Cause: err}
			}
			return Error{Cause: &Failure{
				Task:  t.Name,
				Cause: fmt.Errorf("step %d exceeded threshold %v", i+1, t.FailureThreshold),
			}}
		}
		if err := Delay(ctx, step); err != nil {
			return Cancelled{Cause: err}
		}
		total += step
		if t.OnStep != nil {
			t.OnStep(i, step)
		}
	}

	if t.Fail {
		return Error{Cause: &Failure{Task: t.Name}}
	}
	return Success{Value: total}
}

// ExecuteAsync launches Execute as a child of l and returns immediately.
func (t Task) ExecuteAsync(l Launcher) *Deferred {
	return l.Async(t.Name, t.Execute)
}

// Repeat builds n steps of equal length.
func Repeat(step time.Duration, n int) []time.Duration {
	steps := make([]time.Duration, n)
	for i := range steps {
		steps[i] = step
	}
	return steps
}
