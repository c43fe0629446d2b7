package scope

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/playground/pkg/core"
	"github.com/fluxorio/playground/pkg/task"
)

const tracerName = "github.com/fluxorio/playground/pkg/scope"

// Observer is notified when jobs and scopes finish. Calls arrive from the
// goroutine that finished the job, so implementations must be safe for
// concurrent use.
type Observer interface {
	JobFinished(scope, job string, r task.Result, elapsed time.Duration)
	ScopeFinished(scope string, s State, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) JobFinished(string, string, task.Result, time.Duration) {}
func (nopObserver) ScopeFinished(string, State, time.Duration)             {}

type config struct {
	failFast bool
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Scope.
type Option func(*config)

func defaultConfig() config {
	return config{
		logger:   core.NopLogger(),
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
}

// WithFailFast makes the first job error cancel every sibling.
func WithFailFast() Option {
	return func(c *config) { c.failFast = true }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers o for job and scope completion events.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithTracer sets the tracer that opens one span per job.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}
