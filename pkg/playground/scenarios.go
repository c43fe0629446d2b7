package playground

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fluxorio/playground/pkg/core/concurrency"
	"github.com/fluxorio/playground/pkg/legacy"
	"github.com/fluxorio/playground/pkg/repository"
	"github.com/fluxorio/playground/pkg/scope"
	"github.com/fluxorio/playground/pkg/sink"
	"github.com/fluxorio/playground/pkg/task"
	"github.com/fluxorio/playground/pkg/usecase"
)

// step delays of tasks 1..3 in the sequential, parallel and exceptions
// scenarios, in nominal milliseconds
var stepPlan = [3][3]int{
	{100, 500, 1500},
	{300, 200, 2000},
	{200, 600, 1800},
}

const errorThresholdMS = 1000

var multipleWeights = [3][3]int64{
	{1, 10, 100},
	{2, 20, 200},
	{3, 30, 300},
}

var callbackInputs = [3]string{"RANDOM STRING", legacy.InputSuccess, legacy.InputCancel}

var cancelledFallback = task.Cancelled{Cause: task.ErrCancelled}

func (o *Orchestrator) publish(id sink.TaskID, s task.State) {
	o.sink.Publish(id, s)
}

// finish publishes the terminal state for a (result, error) pair and logs
// errors nobody expected.
func (o *Orchestrator) finish(logger *slog.Logger, id sink.TaskID, r task.Result, err error, expected ...error) {
	state := task.StateOf(r, err)
	if err != nil && !task.IsCancellation(err) && !isExpected(err, expected) {
		logger.Warn("task failed unexpectedly", "task", string(id), "error", err)
	}
	o.publish(id, state)
}

func isExpected(err error, expected []error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) steps(i int) []time.Duration {
	plan := stepPlan[i]
	return []time.Duration{o.timing.ms(plan[0]), o.timing.ms(plan[1]), o.timing.ms(plan[2])}
}

// prepare resets every task to INITIAL and waits the settle delay. It
// reports false when the run was cancelled while settling.
func (o *Orchestrator) prepare(ctx context.Context, ids ...sink.TaskID) bool {
	if len(ids) == 0 {
		ids = sink.TaskIDs
	}
	for _, id := range ids {
		o.publish(id, task.StateInitial)
	}
	return task.Delay(ctx, o.timing.settle()) == nil
}

// abandon publishes CANCELLED for the tasks a cancelled run never reached.
func (o *Orchestrator) abandon(ids ...sink.TaskID) {
	for _, id := range ids {
		o.publish(id, task.StateCancelled)
	}
}

func (o *Orchestrator) stepTask(i int, parallel, withError bool) usecase.StepTask {
	name := string(sink.TaskIDs[i])
	switch {
	case withError && i == 1:
		return usecase.NewErrorTask(name, o.timing.ms(errorThresholdMS))
	case parallel:
		return usecase.NewParallelTask(name)
	default:
		return usecase.NewSequentialTask(name)
	}
}

func (o *Orchestrator) sequential(withError bool) func(*scope.Scope, *slog.Logger) {
	return func(sc *scope.Scope, logger *slog.Logger) {
		ctx := sc.Context()
		if !o.prepare(ctx) {
			o.abandon(sink.TaskIDs...)
			return
		}
		for i, id := range sink.TaskIDs {
			if ctx.Err() != nil {
				o.abandon(sink.TaskIDs[i:]...)
				return
			}
			o.publish(id, task.StateRunning)
			r := o.stepTask(i, false, withError).Execute(ctx, o.steps(i)...)
			o.finish(logger, id, r, nil)
		}
	}
}

func (o *Orchestrator) parallel(withError bool) func(*scope.Scope, *slog.Logger) {
	return func(sc *scope.Scope, logger *slog.Logger) {
		ctx := sc.Context()
		if !o.prepare(ctx) {
			o.abandon(sink.TaskIDs...)
			return
		}
		handles := make([]*task.Deferred, len(sink.TaskIDs))
		for i, id := range sink.TaskIDs {
			o.publish(id, task.StateRunning)
			handles[i] = o.stepTask(i, true, withError).ExecuteAsync(sc, o.steps(i)...)
		}
		for i, id := range sink.TaskIDs {
			r, err := handles[i].Await(ctx)
			o.finish(logger, id, r, err, task.ErrTaskFailure)
		}
	}
}

func (o *Orchestrator) multiple(sc *scope.Scope, logger *slog.Logger) {
	ctx := sc.Context()
	if !o.prepare(ctx) {
		o.abandon(sink.TaskIDs...)
		return
	}
	for i, id := range sink.TaskIDs {
		if ctx.Err() != nil {
			o.abandon(sink.TaskIDs[i:]...)
			return
		}
		o.publish(id, task.StateRunning)
		u := usecase.MultipleTask{
			Name:    string(id),
			Unit:    o.timing.ms(10),
			Options: []scope.Option{scope.WithLogger(logger), scope.WithTracer(o.tracer)},
		}
		r := u.Execute(ctx, multipleWeights[i][:]...)
		logger.Debug("multiple task aggregated", "task", string(id), "result", r)
		o.finish(logger, id, r, nil)
	}
}

func (o *Orchestrator) callbackWithError(sc *scope.Scope, logger *slog.Logger) {
	ctx := sc.Context()
	if !o.prepare(ctx) {
		o.abandon(sink.TaskIDs...)
		return
	}
	for i, id := range sink.TaskIDs {
		if ctx.Err() != nil {
			o.abandon(sink.TaskIDs[i:]...)
			return
		}
		o.publish(id, task.StateRunning)
		u := usecase.CallbackTask{Name: string(id), Service: o.service}
		r, err := u.Execute(ctx, callbackInputs[i])
		o.finish(logger, id, r, err, task.ErrTaskFailure)
	}
}

type longPlan struct {
	step  int
	steps int
}

var longComputationPlan = [3]longPlan{{500, 10}, {1000, 5}, {300, 20}}

// longComputation runs three independent jobs, each cancellable through
// CancelLongComputation while it runs.
func (o *Orchestrator) longComputation(sc *scope.Scope, logger *slog.Logger) {
	for i, id := range sink.TaskIDs {
		plan := longComputationPlan[i]
		sc.Go(string(id), func(ctx context.Context) error {
			if !o.prepare(ctx, id) {
				o.publish(id, task.StateCancelled)
				return nil
			}
			o.publish(id, task.StateRunning)

			d := usecase.LongComputationTask{Name: string(id)}.
				ExecuteAsync(sc, o.timing.ms(plan.step), plan.steps, 0)
			o.track(id, d)
			defer o.untrack(id, d)

			r, err := d.AwaitOrReturn(ctx, cancelledFallback)
			o.finish(logger, id, r, err)
			return nil
		})
	}
}

// longComputationWithTimeout bounds each job differently: task 1 by its
// own timeout, task 2 by a timeout scope around the await, task 3 by a
// timeout scope around the whole job.
func (o *Orchestrator) longComputationWithTimeout(sc *scope.Scope, logger *slog.Logger) {
	sc.Go(string(sink.Task1), func(ctx context.Context) error {
		id := sink.Task1
		if !o.prepare(ctx, id) {
			o.publish(id, task.StateCancelled)
			return nil
		}
		o.publish(id, task.StateRunning)
		d := usecase.LongComputationTask{Name: string(id)}.
			ExecuteAsync(sc, o.timing.ms(500), 10, o.timing.ms(4000))
		r, err := d.AwaitOrReturn(ctx, cancelledFallback)
		o.finish(logger, id, r, err)
		return nil
	})

	sc.Go(string(sink.Task2), func(ctx context.Context) error {
		id := sink.Task2
		if !o.prepare(ctx, id) {
			o.publish(id, task.StateCancelled)
			return nil
		}
		o.publish(id, task.StateRunning)

		var r task.Result
		err := scope.WithTimeout(sc, o.timing.ms(3000), func(ts *scope.Scope) error {
			d := usecase.LongComputationTask{Name: string(id)}.ExecuteAsync(ts, o.timing.ms(1000), 5, 0)
			var err error
			r, err = d.Await(ts.Context())
			return err
		})
		if err != nil {
			r = nil
		}
		o.finish(logger, id, r, err)
		return nil
	})

	sc.Go(string(sink.Task3), func(context.Context) error {
		id := sink.Task3
		published := false
		err := scope.WithTimeout(sc, o.timing.ms(2000), func(ts *scope.Scope) error {
			ctx := ts.Context()
			if !o.prepare(ctx, id) {
				return task.CauseOf(ctx)
			}
			o.publish(id, task.StateRunning)
			d := usecase.LongComputationTask{Name: string(id)}.ExecuteAsync(ts, o.timing.ms(300), 20, 0)
			r, err := d.AwaitOrReturn(ctx, cancelledFallback)
			o.finish(logger, id, r, err)
			published = true
			return err
		})
		if !published {
			o.finish(logger, id, nil, err)
		}
		return nil
	})
}

type channelPlan struct {
	interval     int
	count        int
	processing   int
	timeout      int
	backpressure bool
}

var channelsPlan = [3]channelPlan{
	{interval: 800, count: 10, processing: 400},
	{interval: 800, count: 10, processing: 1000, timeout: 8000},
	{interval: 500, count: 20, processing: 1500, backpressure: true},
}

// channels runs three producer/consumer pipelines side by side. The
// consumer flips its task to RUNNING while processing an item and back to
// INITIAL after; the producer's result is the terminal state.
func (o *Orchestrator) channels(sc *scope.Scope, logger *slog.Logger) {
	if !o.prepare(sc.Context()) {
		o.abandon(sink.TaskIDs...)
		return
	}
	for i, id := range sink.TaskIDs {
		plan := channelsPlan[i]
		sc.Go(string(id), func(ctx context.Context) error {
			o.pipeline(ctx, sc, logger, id, plan)
			return nil
		})
	}
}

func (o *Orchestrator) pipeline(ctx context.Context, sc *scope.Scope, logger *slog.Logger, id sink.TaskID, plan channelPlan) {
	logger = logger.With("task", string(id))

	primary := concurrency.NewChannel[int64](string(id) + "/primary")
	var backpressure *concurrency.Channel[int64]
	if plan.backpressure {
		backpressure = concurrency.NewChannel[int64](string(id) + "/backpressure")
	}

	producer := usecase.ChannelTask{
		Name:     string(id),
		Interval: o.timing.ms(plan.interval),
		Count:    plan.count,
		Timeout:  o.timing.ms(plan.timeout),
		Logger:   logger,
		OnRedirect: func(int64) {
			if o.metrics != nil {
				o.metrics.RecordRedirect(string(id))
			}
		},
	}.ExecuteAsync(sc, primary, backpressure)

	consumer := &usecase.Consumer{
		Processing:  o.timing.ms(plan.processing),
		Executor:    o.background,
		OnReceive:   func(int64) { o.publish(id, task.StateRunning) },
		OnProcessed: func(int64) { o.publish(id, task.StateInitial) },
	}

	var consumeErr error
	if backpressure == nil {
		consumeErr = consumer.Run(ctx, primary)
	} else {
		primaryLoop := sc.Go(string(id)+"/consumer", func(ctx context.Context) error {
			return consumer.Run(ctx, primary)
		})
		backpressureLoop := sc.Go(string(id)+"/backpressure", func(ctx context.Context) error {
			return backpressure.Range(ctx, func(context.Context, int64) error { return nil })
		})
		_, consumeErr = primaryLoop.Await(ctx)
		if _, err := backpressureLoop.Await(ctx); consumeErr == nil {
			consumeErr = err
		}
	}

	r, err := producer.Await(ctx)
	if consumeErr != nil && err == nil {
		r, err = nil, consumeErr
	}
	if s, ok := r.(task.Success); ok {
		stats := s.Value.(usecase.PipelineStats)
		logger.Info("pipeline finished",
			"produced", stats.Produced,
			"delivered", stats.Delivered,
			"redirected", stats.Redirected,
			"consumed", consumer.Consumed(),
		)
	}
	o.finish(logger, id, r, err)
}

// exceptions shows three recovery boundaries: a failure returned
// directly, a failure surfacing at an await, and a repository I/O error
// surfacing at a different await.
func (o *Orchestrator) exceptions(sc *scope.Scope, logger *slog.Logger) {
	ctx := sc.Context()
	if !o.prepare(ctx) {
		o.abandon(sink.TaskIDs...)
		return
	}
	u := usecase.ExceptionsTask{Name: "exceptions", Repo: o.repo}

	o.publish(sink.Task1, task.StateRunning)
	r, err := u.Execute(ctx, o.steps(0)...)
	var failure *task.Failure
	if errors.As(err, &failure) {
		logger.Info("caught task failure", "task", string(sink.Task1), "error", err)
	}
	o.finish(logger, sink.Task1, r, err, task.ErrTaskFailure)

	o.publish(sink.Task2, task.StateRunning)
	d2 := u.ExecuteAsync(sc, o.steps(1)...)

	o.publish(sink.Task3, task.StateRunning)
	d3 := u.ExecuteWithRepositoryAsync(sc, o.steps(2)...)

	r, err = d2.Await(ctx)
	if errors.As(err, &failure) {
		logger.Info("caught task failure at await", "task", string(sink.Task2), "error", err)
	}
	o.finish(logger, sink.Task2, r, err, task.ErrTaskFailure)

	r, err = d3.Await(ctx)
	var ioErr *repository.IOError
	if errors.As(err, &ioErr) {
		logger.Info("caught repository error at await", "task", string(sink.Task3), "op", ioErr.Op, "error", err)
	}
	o.finish(logger, sink.Task3, r, err, repository.ErrIO)
}
