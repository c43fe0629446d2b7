// Package legacy models a callback-style service that predates context
// cancellation. Results arrive through a Callback rather than a return
// value.
package legacy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxorio/playground/pkg/core"
)

// Input values understood by DelayedService.
const (
	InputSuccess = "SUCCESS"
	InputCancel  = "CANCEL"
)

// ErrUnsupportedInput is reported through OnFailure for unknown inputs.
var ErrUnsupportedInput = errors.New("unsupported input")

// Callback receives the outcome of a Service call. Exactly one method is
// expected to fire, but adapters must tolerate misbehaving services that
// call more than one.
type Callback struct {
	OnSuccess func(value string)
	OnFailure func(err error)
	OnCancel  func()
}

// Service starts work and reports through cb from another goroutine.
type Service interface {
	Start(input string, cb Callback)
}

// DelayedService answers after Latency: SUCCESS succeeds, CANCEL reports
// cancellation, anything else fails.
type DelayedService struct {
	Latency time.Duration
	Logger  *slog.Logger

	// Repeat, when set, fires the callback a second time. Used to exercise
	// single-delivery on the adapter side.
	Repeat bool
}

// NewDelayedService builds a DelayedService with a no-op logger.
func NewDelayedService(latency time.Duration) *DelayedService {
	return &DelayedService{Latency: latency, Logger: core.NopLogger()}
}

func (s *DelayedService) Start(input string, cb Callback) {
	logger := s.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	time.AfterFunc(s.Latency, func() {
		logger.Debug("legacy service answering", "input", input)
		s.deliver(input, cb)
		if s.Repeat {
			s.deliver(input, cb)
		}
	})
}

func (s *DelayedService) deliver(input string, cb Callback) {
	switch input {
	case InputSuccess:
		if cb.OnSuccess != nil {
			cb.OnSuccess(input)
		}
	case InputCancel:
		if cb.OnCancel != nil {
			cb.OnCancel()
		}
	default:
		if cb.OnFailure != nil {
			cb.OnFailure(fmt.Errorf("%w: %q", ErrUnsupportedInput, input))
		}
	}
}
