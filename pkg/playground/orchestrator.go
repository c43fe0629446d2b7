// Package playground drives the demonstration scenarios. An Orchestrator
// opens a fresh scope per run, launches the scenario's tasks, and publishes
// each tracked task's state transitions to a sink.
package playground

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/playground/pkg/core"
	"github.com/fluxorio/playground/pkg/core/concurrency"
	"github.com/fluxorio/playground/pkg/core/failfast"
	"github.com/fluxorio/playground/pkg/legacy"
	"github.com/fluxorio/playground/pkg/observability/metrics"
	"github.com/fluxorio/playground/pkg/repository"
	"github.com/fluxorio/playground/pkg/scope"
	"github.com/fluxorio/playground/pkg/sink"
	"github.com/fluxorio/playground/pkg/task"
)

var (
	// ErrUnknownScenario is returned for scenario names not in Scenarios.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrSuperseded is the cancellation cause of a run replaced by a newer one.
	ErrSuperseded = fmt.Errorf("%w: superseded by a newer run", task.ErrCancelled)

	// ErrClosed is returned by commands after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// Config wires an Orchestrator. Sink and Dispatcher are required.
type Config struct {
	Sink sink.Sink

	// Dispatcher runs fire-and-forget scenario commands.
	Dispatcher concurrency.Executor

	// Background runs leaf work such as consumer processing delays. Nil
	// runs it inline.
	Background concurrency.Executor

	Timing     Timing
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
	Service    legacy.Service
	Repository repository.Repository
}

type run struct {
	id     string
	cancel context.CancelCauseFunc
}

// Orchestrator runs scenarios. Runs are serialized: starting one cancels
// every older run, in progress or still queued, and waits for them to
// unwind first.
type Orchestrator struct {
	sink       sink.Sink
	dispatcher concurrency.Executor
	background concurrency.Executor
	timing     Timing
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	service    legacy.Service
	repo       repository.Repository

	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup

	runMu sync.Mutex

	mu     sync.Mutex
	closed bool
	runs   map[*run]struct{}
	long   map[sink.TaskID]*task.Deferred
}

// New builds an Orchestrator. Fire-and-forget runs derive from ctx and
// stop when it is done or Close is called.
func New(ctx context.Context, cfg Config) *Orchestrator {
	failfast.NotNil(ctx, "context")
	failfast.NotNil(cfg.Sink, "sink")
	failfast.NotNil(cfg.Dispatcher, "dispatcher")

	if cfg.Timing.Scale <= 0 {
		cfg.Timing = DefaultTiming()
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/fluxorio/playground/pkg/playground")
	}
	if cfg.Service == nil {
		cfg.Service = &legacy.DelayedService{Latency: cfg.Timing.ms(1000), Logger: cfg.Logger}
	}
	if cfg.Repository == nil {
		cfg.Repository = &repository.Simulated{Latency: cfg.Timing.ms(500), Fail: true}
	}

	octx, cancel := context.WithCancelCause(ctx)
	return &Orchestrator{
		sink:       cfg.Sink,
		dispatcher: cfg.Dispatcher,
		background: cfg.Background,
		timing:     cfg.Timing,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		service:    cfg.Service,
		repo:       cfg.Repository,
		ctx:        octx,
		cancel:     cancel,
		runs:       make(map[*run]struct{}),
		long:       make(map[sink.TaskID]*task.Deferred),
	}
}

// Start submits s to the dispatcher and returns its run ID without
// waiting. It fails if the dispatcher queue is full or closed.
func (o *Orchestrator) Start(s Scenario) (string, error) {
	if _, err := ParseScenario(string(s)); err != nil {
		return "", err
	}
	o.mu.Lock()
	if o.closed || o.ctx.Err() != nil {
		o.mu.Unlock()
		return "", ErrClosed
	}
	o.wg.Add(1)
	o.mu.Unlock()

	runID := uuid.NewString()
	work := concurrency.NewNamedWork("scenario "+string(s), func(ctx context.Context) error {
		defer o.wg.Done()
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		stop := context.AfterFunc(o.ctx, func() { cancel(context.Cause(o.ctx)) })
		defer stop()
		return o.run(ctx, runID, s)
	})
	if err := o.dispatcher.Submit(work); err != nil {
		o.wg.Done()
		return "", fmt.Errorf("dispatch %s: %w", s, err)
	}
	return runID, nil
}

func (o *Orchestrator) RunSequential() (string, error) { return o.Start(ScenarioSequential) }
func (o *Orchestrator) RunParallel() (string, error)   { return o.Start(ScenarioParallel) }
func (o *Orchestrator) RunSequentialWithError() (string, error) {
	return o.Start(ScenarioSequentialWithError)
}
func (o *Orchestrator) RunParallelWithError() (string, error) {
	return o.Start(ScenarioParallelWithError)
}
func (o *Orchestrator) RunMultiple() (string, error) { return o.Start(ScenarioMultiple) }
func (o *Orchestrator) RunCallbackWithError() (string, error) {
	return o.Start(ScenarioCallbackWithError)
}
func (o *Orchestrator) RunLongComputation() (string, error) {
	return o.Start(ScenarioLongComputation)
}
func (o *Orchestrator) RunLongComputationWithTimeout() (string, error) {
	return o.Start(ScenarioLongComputationWithTimeout)
}
func (o *Orchestrator) RunChannels() (string, error)   { return o.Start(ScenarioChannels) }
func (o *Orchestrator) RunExceptions() (string, error) { return o.Start(ScenarioExceptions) }

// Run executes s on the calling goroutine and returns when every task of
// the run has published its terminal state. The error is non-nil when the
// run was cancelled or its scope failed.
func (o *Orchestrator) Run(ctx context.Context, s Scenario) error {
	if _, err := ParseScenario(string(s)); err != nil {
		return err
	}
	return o.run(ctx, uuid.NewString(), s)
}

func (o *Orchestrator) run(ctx context.Context, runID string, s Scenario) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	mine := &run{id: runID, cancel: cancel}
	o.mu.Lock()
	for older := range o.runs {
		older.cancel(ErrSuperseded)
	}
	o.runs[mine] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.runs, mine)
		o.mu.Unlock()
	}()

	o.runMu.Lock()
	defer o.runMu.Unlock()

	logger := o.logger.With("scenario", string(s), "run_id", runID)
	if cause := task.CauseOf(ctx); errors.Is(cause, ErrSuperseded) {
		logger.Info("scenario skipped", "cause", cause)
		return cause
	}
	ctx, span := o.tracer.Start(ctx, "scenario "+string(s),
		trace.WithAttributes(
			attribute.String("scenario", string(s)),
			attribute.String("run.id", runID),
		))
	defer span.End()

	opts := []scope.Option{scope.WithLogger(logger), scope.WithTracer(o.tracer)}
	if o.metrics != nil {
		opts = append(opts, scope.WithObserver(o.metrics))
	}
	sc := scope.New(ctx, string(s), opts...)

	logger.Info("scenario started")
	start := time.Now()

	o.body(s)(sc, logger)
	err := sc.Wait()

	outcome := sc.State().String()
	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.RecordScenario(string(s), outcome, elapsed)
	}
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		logger.Info("scenario finished", "elapsed", elapsed)
	case task.IsCancellation(err):
		span.SetStatus(codes.Unset, "cancelled")
		logger.Info("scenario cancelled", "elapsed", elapsed, "cause", err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("scenario failed", "elapsed", elapsed, "error", err)
	}
	return err
}

func (o *Orchestrator) body(s Scenario) func(*scope.Scope, *slog.Logger) {
	switch s {
	case ScenarioSequential:
		return o.sequential(false)
	case ScenarioSequentialWithError:
		return o.sequential(true)
	case ScenarioParallel:
		return o.parallel(false)
	case ScenarioParallelWithError:
		return o.parallel(true)
	case ScenarioMultiple:
		return o.multiple
	case ScenarioCallbackWithError:
		return o.callbackWithError
	case ScenarioLongComputation:
		return o.longComputation
	case ScenarioLongComputationWithTimeout:
		return o.longComputationWithTimeout
	case ScenarioChannels:
		return o.channels
	case ScenarioExceptions:
		return o.exceptions
	default:
		panic(fmt.Sprintf("playground: no body for scenario %q", s))
	}
}

// CancelLongComputation cancels the running long computation of id. It
// is a no-op when that computation is not running.
func (o *Orchestrator) CancelLongComputation(id sink.TaskID) error {
	if _, err := sink.ParseTaskID(string(id)); err != nil {
		return err
	}
	o.mu.Lock()
	d := o.long[id]
	o.mu.Unlock()

	if d == nil {
		o.logger.Debug("no long computation to cancel", "task", string(id))
		return nil
	}
	o.logger.Info("cancelling long computation", "task", string(id), "job_id", d.ID())
	d.Cancel()
	return nil
}

func (o *Orchestrator) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}

func (o *Orchestrator) track(id sink.TaskID, d *task.Deferred) {
	o.mu.Lock()
	o.long[id] = d
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(id sink.TaskID, d *task.Deferred) {
	o.mu.Lock()
	if o.long[id] == d {
		delete(o.long, id)
	}
	o.mu.Unlock()
}

// Close cancels every run and waits for fire-and-forget runs to unwind
// or ctx to end.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.cancel(fmt.Errorf("%w: %w", task.ErrCancelled, ErrClosed))
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close orchestrator: %w", ctx.Err())
	}
}
