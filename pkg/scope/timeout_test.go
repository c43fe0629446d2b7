package scope

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxorio/playground/pkg/task"
)

func TestWithTimeout_Expires(t *testing.T) {
	sc := New(context.Background(), "root")
	defer sc.Wait()

	var inner *task.Deferred
	start := time.Now()
	err := WithTimeout(sc, 20*time.Millisecond, func(ts *Scope) error {
		inner = task.Task{Name: "long", Steps: task.Repeat(50*time.Millisecond, 5)}.ExecuteAsync(ts)
		_, err := inner.Await(ts.Context())
		return err
	})

	assert.Less(t, time.Since(start), time.Second, "timeout must not hang")
	assert.ErrorIs(t, err, task.ErrCancelled)
	var te *task.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 20*time.Millisecond, te.After)
	assert.Equal(t, task.StateCancelled, task.StateOf(nil, err))

	r, ok := inner.Result()
	require.True(t, ok, "inner job is finished before WithTimeout returns")
	assert.Equal(t, task.StateCancelled, r.State())
	assert.Equal(t, Active, sc.State(), "parent is unaffected")
}

func TestWithTimeout_FinishesInTime(t *testing.T) {
	sc := New(context.Background(), "root")
	defer sc.Wait()

	err := WithTimeout(sc, time.Second, func(ts *Scope) error {
		_, err := task.Task{Name: "short", Steps: []time.Duration{time.Millisecond}}.ExecuteAsync(ts).Await(ts.Context())
		return err
	})
	assert.NoError(t, err)
}

func TestWithTimeout_CommittedValueWins(t *testing.T) {
	sc := New(context.Background(), "root")
	defer sc.Wait()

	err := WithTimeout(sc, 20*time.Millisecond, func(ts *Scope) error {
		r, err := task.Resolved("quick", task.Success{Value: 1}).Await(ts.Context())
		if err != nil {
			return err
		}
		assert.Equal(t, task.Success{Value: 1}, r)
		time.Sleep(60 * time.Millisecond)
		return nil
	})
	assert.NoError(t, err)
}

func TestWithTimeout_UnawaitedJobCutShort(t *testing.T) {
	sc := New(context.Background(), "root")
	defer sc.Wait()

	err := WithTimeout(sc, 20*time.Millisecond, func(ts *Scope) error {
		task.Task{Name: "long", Steps: task.Repeat(50*time.Millisecond, 5)}.ExecuteAsync(ts)
		return nil
	})
	assert.True(t, task.IsTimeout(err))
}

func TestWithTimeout_BodyErrorWins(t *testing.T) {
	sc := New(context.Background(), "root")
	defer sc.Wait()

	boom := errors.New("boom")
	err := WithTimeout(sc, time.Second, func(*Scope) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWithTimeout_ParentCancelled(t *testing.T) {
	sc := New(context.Background(), "root")
	time.AfterFunc(5*time.Millisecond, func() { sc.Cancel(nil) })

	err := WithTimeout(sc, time.Minute, func(ts *Scope) error {
		<-ts.Context().Done()
		return task.CauseOf(ts.Context())
	})
	assert.ErrorIs(t, err, task.ErrCancelled)
	assert.False(t, task.IsTimeout(err))
	_ = sc.Wait()
}

func TestWithTimeout_InvalidArgs(t *testing.T) {
	sc := New(context.Background(), "root")
	defer sc.Wait()

	assert.Panics(t, func() { _ = WithTimeout(sc, 0, func(*Scope) error { return nil }) })
	assert.Panics(t, func() { _ = WithTimeout(nil, time.Second, func(*Scope) error { return nil }) })
}
