// Package repository provides the simulated data source behind the
// exceptions scenario.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/playground/pkg/task"
)

// ErrIO matches every *IOError.
var ErrIO = errors.New("repository i/o error")

// IOError is a failed repository operation.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("repository %s failed", e.Op)
	}
	return fmt.Sprintf("repository %s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// Repository fetches a value from a backing store.
type Repository interface {
	Fetch(ctx context.Context) (int64, error)
}

// Simulated answers after Latency with Value, or with an *IOError when
// Fail is set.
type Simulated struct {
	Latency time.Duration
	Value   int64
	Fail    bool
}

func (r *Simulated) Fetch(ctx context.Context) (int64, error) {
	if err := task.Delay(ctx, r.Latency); err != nil {
		return 0, err
	}
	if r.Fail {
		return 0, &IOError{Op: "fetch", Err: errors.New("connection reset by peer")}
	}
	return r.Value, nil
}
