package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fluxorio/playground/pkg/core"
	"github.com/fluxorio/playground/pkg/core/concurrency"
	"github.com/fluxorio/playground/pkg/task"
)

// PipelineStats is the Success value of a channel producer.
type PipelineStats struct {
	Produced   int `json:"produced"`
	Delivered  int `json:"delivered"`
	Redirected int `json:"redirected"`
}

// ChannelTask produces Count items on a fixed cadence. Item k (1-based) is
// due at start + k*Interval.
//
// Without a backpressure channel each send blocks until the consumer takes
// the item, so a slow consumer stalls the producer. With one, the send on
// the primary channel gives up at due + Interval and the item goes to the
// backpressure channel instead.
type ChannelTask struct {
	Name     string
	Interval time.Duration
	Count    int

	// Timeout bounds the producer. Zero means no bound.
	Timeout time.Duration

	// OnRedirect is called for every item sent to the backpressure channel.
	OnRedirect func(item int64)

	Logger *slog.Logger
}

// ExecuteAsync launches the producer on l. The producer closes primary and
// backpressure (which may be nil) on every exit path.
func (u ChannelTask) ExecuteAsync(l task.Launcher, primary, backpressure *concurrency.Channel[int64]) *task.Deferred {
	return l.Async(u.Name, func(ctx context.Context) task.Result {
		if u.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = task.WithTimeout(ctx, u.Timeout)
			defer cancel()
		}
		return u.produce(ctx, primary, backpressure)
	})
}

func (u ChannelTask) produce(ctx context.Context, primary, backpressure *concurrency.Channel[int64]) task.Result {
	defer primary.Close()
	if backpressure != nil {
		defer backpressure.Close()
	}

	logger := u.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	logger = logger.With("task", u.Name)

	var stats PipelineStats
	start := time.Now()
	for k := 1; k <= u.Count; k++ {
		due := start.Add(time.Duration(k) * u.Interval)
		if err := task.Delay(ctx, time.Until(due)); err != nil {
			logger.Debug("producer cancelled", "produced", stats.Produced, "cause", err)
			return task.Cancelled{Cause: err}
		}

		item := int64(k)
		stats.Produced++

		if backpressure == nil {
			if err := primary.Send(ctx, item); err != nil {
				return task.Fail(err)
			}
			stats.Delivered++
			continue
		}

		err := primary.SendBefore(ctx, item, due.Add(u.Interval))
		switch {
		case err == nil:
			stats.Delivered++
		case errors.Is(err, concurrency.ErrSendTimeout):
			if err := backpressure.Send(ctx, item); err != nil {
				return task.Fail(err)
			}
			stats.Redirected++
			logger.Info("item redirected to backpressure channel", "item", item)
			if u.OnRedirect != nil {
				u.OnRedirect(item)
			}
		default:
			return task.Fail(err)
		}
	}

	logger.Debug("producer finished", "produced", stats.Produced, "redirected", stats.Redirected)
	return task.Success{Value: stats}
}

// Consumer drains a channel until it is closed. Each item is processed for
// Processing, on Executor when set, with OnReceive and OnProcessed around it.
type Consumer struct {
	Processing time.Duration
	Executor   concurrency.Executor

	OnReceive   func(item int64)
	OnProcessed func(item int64)

	consumed atomic.Int64
}

// Run consumes ch until it is closed (nil error) or ctx is done.
func (c *Consumer) Run(ctx context.Context, ch *concurrency.Channel[int64]) error {
	return ch.Range(ctx, func(ctx context.Context, item int64) error {
		if c.OnReceive != nil {
			c.OnReceive(item)
		}
		if err := c.process(ctx); err != nil {
			return task.Normalize(err)
		}
		c.consumed.Add(1)
		if c.OnProcessed != nil {
			c.OnProcessed(item)
		}
		return nil
	})
}

func (c *Consumer) process(ctx context.Context) error {
	if c.Executor == nil {
		return task.Delay(ctx, c.Processing)
	}
	return c.Executor.Run(ctx, concurrency.NewNamedWork("consume", func(ctx context.Context) error {
		return task.Delay(ctx, c.Processing)
	}))
}

// Consumed returns the number of fully processed items.
func (c *Consumer) Consumed() int64 { return c.consumed.Load() }
