package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxorio/playground/pkg/task"
)

func TestSimulated_Fetch(t *testing.T) {
	v, err := (&Simulated{Latency: time.Millisecond, Value: 42}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestSimulated_Fail(t *testing.T) {
	_, err := (&Simulated{Fail: true}).Fetch(context.Background())
	wrapped := fmt.Errorf("load: %w", err)

	assert.ErrorIs(t, wrapped, ErrIO)
	var ioErr *IOError
	require.ErrorAs(t, wrapped, &ioErr)
	assert.Equal(t, "fetch", ioErr.Op)
	assert.Contains(t, ioErr.Error(), "connection reset")
	assert.False(t, task.IsCancellation(err))
}

func TestSimulated_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Simulated{Latency: time.Minute}).Fetch(ctx)
	assert.ErrorIs(t, err, task.ErrCancelled)
}
