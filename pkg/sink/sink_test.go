package sink

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxorio/playground/pkg/observability/metrics"
	"github.com/fluxorio/playground/pkg/task"
)

func TestParseTaskID(t *testing.T) {
	id, err := ParseTaskID("task2")
	require.NoError(t, err)
	assert.Equal(t, Task2, id)

	_, err = ParseTaskID("task4")
	assert.Error(t, err)
}

func TestHub_SequencesPerTask(t *testing.T) {
	rec := NewRecorder()
	h := NewHub(rec)

	h.Publish(Task1, task.StateInitial)
	h.Publish(Task2, task.StateInitial)
	h.Publish(Task1, task.StateRunning)
	h.Publish(Task1, task.StateCompleted)
	h.Publish("nope", task.StateRunning)

	history := rec.History()
	require.Len(t, history, 4)
	assert.Equal(t, uint64(1), history[0].Seq)
	assert.Equal(t, uint64(1), history[1].Seq)
	assert.Equal(t, uint64(3), history[3].Seq)

	assert.Equal(t, []task.State{task.StateInitial, task.StateRunning, task.StateCompleted}, rec.States(Task1))

	latest, ok := h.Latest(Task1)
	require.True(t, ok)
	assert.Equal(t, task.StateCompleted, latest.State)

	snap := h.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, task.StateInitial, snap[Task3].State)
	assert.Zero(t, snap[Task3].Seq)
}

func TestHub_ConcurrentPublishKeepsOrder(t *testing.T) {
	rec := NewRecorder()
	h := NewHub(rec)

	var wg sync.WaitGroup
	for _, id := range TaskIDs {
		wg.Add(1)
		go func(id TaskID) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Publish(id, task.StateRunning)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range TaskIDs {
		var last uint64
		for _, u := range rec.History() {
			if u.Task != id {
				continue
			}
			assert.Equal(t, last+1, u.Seq)
			last = u.Seq
		}
		assert.Equal(t, uint64(100), last)
	}
}

func TestChannels_Conflation(t *testing.T) {
	c := NewChannels(2)
	h := NewHub(c)

	h.Publish(Task1, task.StateInitial)
	h.Publish(Task1, task.StateRunning)
	h.Publish(Task1, task.StateCompleted)

	first := <-c.Updates(Task1)
	second := <-c.Updates(Task1)
	assert.Equal(t, task.StateRunning, first.State)
	assert.Equal(t, task.StateCompleted, second.State)
	assert.Equal(t, 1, c.Dropped(Task1))

	c.Close()
	c.Close()
	h.Publish(Task1, task.StateError)
	_, open := <-c.Updates(Task1)
	assert.False(t, open)
	assert.Nil(t, c.Updates("nope"))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHub(NewLogging(logger))

	h.Publish(Task2, task.StateError)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "task=task2")
	assert.Contains(t, buf.String(), "state=ERROR")
	assert.Panics(t, func() { NewLogging(nil) })
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	h := NewHub(NewMetrics(m))

	h.Publish(Task3, task.StateRunning)
	h.Publish(Task3, task.StateCancelled)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskTransitionsTotal.WithLabelValues("task3", "CANCELLED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskState.WithLabelValues("task3", "CANCELLED")))
}

func TestBus(t *testing.T) {
	bus := NewBus()
	h := NewHub(bus)

	var all, only2 []Update
	unsubAll := bus.Subscribe("", func(u Update) { all = append(all, u) })
	unsub2 := bus.Subscribe(Task2, func(u Update) { only2 = append(only2, u) })
	assert.Equal(t, 2, bus.Subscribers())

	h.Publish(Task1, task.StateRunning)
	h.Publish(Task2, task.StateRunning)

	assert.Len(t, all, 2)
	require.Len(t, only2, 1)
	assert.Equal(t, Task2, only2[0].Task)

	unsubAll()
	unsub2()
	unsub2()
	h.Publish(Task1, task.StateCompleted)
	assert.Len(t, all, 2)
	assert.Zero(t, bus.Subscribers())
}

func TestChain(t *testing.T) {
	var got []string
	c := Chain(
		ObserverFunc(func(Update) { got = append(got, "a") }),
		nil,
		ObserverFunc(func(Update) { got = append(got, "b") }),
	)
	c.OnUpdate(Update{})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last(Task1)
	assert.False(t, ok)

	r.OnUpdate(Update{Task: Task1, State: task.StateRunning})
	last, ok := r.Last(Task1)
	require.True(t, ok)
	assert.Equal(t, task.StateRunning, last)

	r.Reset()
	assert.Empty(t, r.History())
}
