package playground

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fluxorio/playground/pkg/core/concurrency"
	"github.com/fluxorio/playground/pkg/observability/metrics"
	"github.com/fluxorio/playground/pkg/sink"
	"github.com/fluxorio/playground/pkg/task"
)

var testTiming = Timing{Scale: 0.05, SettleDelay: time.Second}

type fixture struct {
	o   *Orchestrator
	rec *sink.Recorder
	m   *metrics.Metrics
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	ctx := context.Background()

	dispatcher := concurrency.NewExecutor(ctx, concurrency.ExecutorConfig{Name: "dispatch", Workers: 2, QueueSize: 8})
	background := concurrency.NewExecutor(ctx, concurrency.ExecutorConfig{Name: "background", Workers: 4, QueueSize: 16})

	rec := sink.NewRecorder()
	m := metrics.New()
	cfg := Config{
		Sink:       sink.NewHub(rec),
		Dispatcher: dispatcher,
		Background: background,
		Timing:     testTiming,
		Metrics:    m,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	o := New(ctx, cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Close(ctx)
		_ = dispatcher.Shutdown(ctx)
		_ = background.Shutdown(ctx)
	})
	return &fixture{o: o, rec: rec, m: m}
}

func (f *fixture) last(t *testing.T, id sink.TaskID) task.State {
	t.Helper()
	s, ok := f.rec.Last(id)
	require.True(t, ok, "no state published for %s", id)
	return s
}

// assertShape checks INITIAL first, exactly one terminal state and that it
// comes last.
func assertShape(t *testing.T, states []task.State) {
	t.Helper()
	require.NotEmpty(t, states)
	assert.Equal(t, task.StateInitial, states[0])
	terminals := 0
	for _, s := range states {
		if s.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "states %v", states)
	assert.True(t, states[len(states)-1].IsTerminal(), "states %v", states)
}

func TestRun_TerminalStates(t *testing.T) {
	C, X, E := task.StateCompleted, task.StateCancelled, task.StateError

	tests := []struct {
		scenario Scenario
		want     [3]task.State
		strict   bool
	}{
		{ScenarioSequential, [3]task.State{C, C, C}, true},
		{ScenarioParallel, [3]task.State{C, C, C}, true},
		{ScenarioSequentialWithError, [3]task.State{C, E, C}, true},
		{ScenarioParallelWithError, [3]task.State{C, E, C}, true},
		{ScenarioMultiple, [3]task.State{C, C, C}, true},
		{ScenarioCallbackWithError, [3]task.State{E, C, X}, true},
		{ScenarioLongComputation, [3]task.State{C, C, C}, true},
		{ScenarioLongComputationWithTimeout, [3]task.State{X, X, X}, true},
		{ScenarioChannels, [3]task.State{C, X, C}, false},
		{ScenarioExceptions, [3]task.State{E, E, E}, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.scenario), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			require.NoError(t, f.o.Run(context.Background(), tt.scenario))

			for i, id := range sink.TaskIDs {
				states := f.rec.States(id)
				assertShape(t, states)
				assert.Equal(t, tt.want[i], states[len(states)-1], "%s states %v", id, states)
				if tt.strict {
					assert.Equal(t, []task.State{task.StateInitial, task.StateRunning, tt.want[i]}, states)
				}
			}
		})
	}
}

func TestRun_ChannelsConsumerCycles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.o.Run(context.Background(), ScenarioChannels))

	states := f.rec.States(sink.Task1)
	running := 0
	for _, s := range states {
		if s == task.StateRunning {
			running++
		}
	}
	assert.Equal(t, 10, running, "every item flips task1 to RUNNING")
	assert.Greater(t, testutil.ToFloat64(f.m.RedirectsTotal.WithLabelValues(string(sink.Task3))), 0.0)
}

func TestRun_UnknownScenario(t *testing.T) {
	f := newFixture(t)

	err := f.o.Run(context.Background(), Scenario("nope"))
	require.ErrorIs(t, err, ErrUnknownScenario)

	_, err = f.o.Start(Scenario("nope"))
	require.ErrorIs(t, err, ErrUnknownScenario)

	_, err = ParseScenario("sequential")
	require.NoError(t, err)
	assert.Len(t, Scenarios(), 10)
}

func TestRun_CancelledByCaller(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(testTiming.settle() + testTiming.ms(200))
		cancel()
	}()

	err := f.o.Run(ctx, ScenarioSequential)
	require.ErrorIs(t, err, task.ErrCancelled)

	for _, id := range sink.TaskIDs {
		assertShape(t, f.rec.States(id))
		assert.Equal(t, task.StateCancelled, f.last(t, id))
	}
}

func TestStart_ReturnsRunID(t *testing.T) {
	f := newFixture(t)

	id, err := f.o.RunParallel()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		for _, tid := range sink.TaskIDs {
			if s, ok := f.rec.Last(tid); !ok || s != task.StateCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.m.ScenarioRunsTotal.WithLabelValues(string(ScenarioParallel), "completed")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCancelLongComputation(t *testing.T) {
	f := newFixture(t)

	done := make(chan error, 1)
	go func() { done <- f.o.Run(context.Background(), ScenarioLongComputation) }()

	require.Eventually(t, func() bool {
		f.o.mu.Lock()
		defer f.o.mu.Unlock()
		return f.o.long[sink.Task2] != nil
	}, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, f.o.CancelLongComputation(sink.Task2))
	require.NoError(t, <-done)

	assert.Equal(t, task.StateCompleted, f.last(t, sink.Task1))
	assert.Equal(t, task.StateCancelled, f.last(t, sink.Task2))
	assert.Equal(t, task.StateCompleted, f.last(t, sink.Task3))

	// nothing tracked any more
	require.NoError(t, f.o.CancelLongComputation(sink.Task2))
	require.Error(t, f.o.CancelLongComputation(sink.TaskID("task9")))
}

func TestRun_Superseded(t *testing.T) {
	f := newFixture(t)

	first := make(chan error, 1)
	go func() { first <- f.o.Run(context.Background(), ScenarioLongComputation) }()

	require.Eventually(t, func() bool {
		s, ok := f.rec.Last(sink.Task1)
		return ok && s == task.StateRunning
	}, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, f.o.Run(context.Background(), ScenarioSequential))

	err := <-first
	require.ErrorIs(t, err, ErrSuperseded)
	require.ErrorIs(t, err, task.ErrCancelled)

	for _, id := range sink.TaskIDs {
		assert.Equal(t, task.StateCompleted, f.last(t, id))
	}
}

func TestRun_SupersedesQueuedRuns(t *testing.T) {
	f := newFixture(t)

	first := make(chan error, 1)
	go func() { first <- f.o.Run(context.Background(), ScenarioLongComputation) }()
	require.Eventually(t, func() bool {
		s, ok := f.rec.Last(sink.Task1)
		return ok && s == task.StateRunning
	}, 2*time.Second, 2*time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- f.o.Run(context.Background(), ScenarioLongComputation) }()
	require.Eventually(t, func() bool { return f.o.pending() == 2 }, 2*time.Second, time.Millisecond)

	require.NoError(t, f.o.Run(context.Background(), ScenarioSequential))

	assert.ErrorIs(t, <-first, ErrSuperseded)
	assert.ErrorIs(t, <-second, ErrSuperseded)
	assert.Zero(t, f.o.pending())
	for _, id := range sink.TaskIDs {
		assert.Equal(t, task.StateCompleted, f.last(t, id))
	}
}

func TestStart_ConcurrentWithClose(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = f.o.RunSequential()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.o.Close(ctx))
	wg.Wait()

	_, err := f.o.RunSequential()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose(t *testing.T) {
	f := newFixture(t)

	_, err := f.o.RunLongComputation()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s, ok := f.rec.Last(sink.Task3)
		return ok && s == task.StateRunning
	}, 2*time.Second, 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.o.Close(ctx))

	for _, id := range sink.TaskIDs {
		assert.Equal(t, task.StateCancelled, f.last(t, id))
	}

	_, err = f.o.RunSequential()
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestRun_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, func(c *Config) { c.Tracer = tp.Tracer("test") })
	require.NoError(t, f.o.Run(context.Background(), ScenarioParallel))

	names := map[string]bool{}
	for _, s := range rec.Ended() {
		names[s.Name()] = true
	}
	assert.True(t, names["scenario parallel"])
	assert.True(t, names[string(sink.Task2)])
}

func TestTiming(t *testing.T) {
	tm := Timing{Scale: 0.5, SettleDelay: time.Second}
	assert.Equal(t, 50*time.Millisecond, tm.ms(100))
	assert.Equal(t, 500*time.Millisecond, tm.settle())
	assert.Equal(t, time.Second, DefaultTiming().settle())
}
