package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrChannelClosed is returned when sending on a closed channel, or when
	// receiving from a channel that is closed and has no pending sender.
	ErrChannelClosed = errors.New("channel is closed")

	// ErrSendTimeout is returned by SendBefore when no receiver took the
	// value before the deadline.
	ErrSendTimeout = errors.New("send timed out: no receiver ready")
)

// Channel is an unbuffered rendezvous queue between one producer and a
// declared set of consumers. A send completes only when a receiver takes
// the value. Close is terminal and idempotent; it never panics a sender.
type Channel[T any] struct {
	name      string
	ch        chan T
	closed    chan struct{}
	closeOnce sync.Once

	sent     atomic.Int64
	received atomic.Int64
}

// NewChannel creates an open rendezvous channel
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{
		name:   name,
		ch:     make(chan T),
		closed: make(chan struct{}),
	}
}

// Name returns the channel name
func (c *Channel[T]) Name() string {
	return c.name
}

// Send blocks until a receiver takes v, the channel is closed, or ctx is done.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case c.ch <- v:
		c.sent.Add(1)
		return nil
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// SendBefore is Send with a deadline. If no receiver is ready before the
// deadline it gives up with ErrSendTimeout and the value is not delivered.
func (c *Channel[T]) SendBefore(ctx context.Context, v T, deadline time.Time) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case c.ch <- v:
		c.sent.Add(1)
		return nil
	case <-timer.C:
		return ErrSendTimeout
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Receive blocks until a value arrives, the channel is closed, or ctx is done.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	select {
	case v := <-c.ch:
		c.received.Add(1)
		return v, nil
	case <-c.closed:
		// a sender that raced Close may still be parked on ch
		select {
		case v := <-c.ch:
			c.received.Add(1)
			return v, nil
		default:
		}
		return zero, ErrChannelClosed
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	}
}

// Range calls fn for every received value until the channel is closed
// (returns nil), ctx is done, or fn fails.
func (c *Channel[T]) Range(ctx context.Context, fn func(ctx context.Context, v T) error) error {
	for {
		v, err := c.Receive(ctx)
		if errors.Is(err, ErrChannelClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ctx, v); err != nil {
			return err
		}
	}
}

// Close closes the channel. Pending and future sends fail with
// ErrChannelClosed. Safe to call more than once.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// IsClosed returns true once Close has been called
func (c *Channel[T]) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Sent returns the number of values handed to a receiver
func (c *Channel[T]) Sent() int64 {
	return c.sent.Load()
}

// Received returns the number of values taken by receivers
func (c *Channel[T]) Received() int64 {
	return c.received.Load()
}
