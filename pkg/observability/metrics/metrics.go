// Package metrics exposes the playground's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxorio/playground/pkg/core/concurrency"
	"github.com/fluxorio/playground/pkg/scope"
	"github.com/fluxorio/playground/pkg/task"
)

const namespace = "playground"

// Metrics holds all Prometheus collectors of one process. Each instance
// owns its registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Task state metrics
	TaskTransitionsTotal *prometheus.CounterVec
	TaskState            *prometheus.GaugeVec

	// Job and scope metrics
	JobsTotal      *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	ScopesTotal    *prometheus.CounterVec
	ScopeDuration  *prometheus.HistogramVec
	RedirectsTotal *prometheus.CounterVec

	// Scenario metrics
	ScenarioRunsTotal *prometheus.CounterVec
	ScenarioDuration  *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics with a fresh registry carrying the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TaskTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_transitions_total",
				Help:      "Total number of published task state transitions",
			},
			[]string{"task", "state"},
		),
		TaskState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "task_state",
				Help:      "Current task state (1 for the active state, 0 otherwise)",
			},
			[]string{"task", "state"},
		),

		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of finished scope jobs by result",
			},
			[]string{"result"},
		),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scope job run time in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
		ScopesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scopes_total",
				Help:      "Total number of settled scopes by final state",
			},
			[]string{"state"},
		),
		ScopeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scope_duration_seconds",
				Help:      "Scope lifetime in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"state"},
		),
		RedirectsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backpressure_redirects_total",
				Help:      "Total number of items redirected to a backpressure channel",
			},
			[]string{"task"},
		),

		ScenarioRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scenario_runs_total",
				Help:      "Total number of scenario runs by outcome",
			},
			[]string{"scenario", "outcome"},
		),
		ScenarioDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scenario_duration_seconds",
				Help:      "Scenario run time in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"scenario"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTransition records a published task state.
func (m *Metrics) ObserveTransition(taskID string, s task.State) {
	m.TaskTransitionsTotal.WithLabelValues(taskID, s.String()).Inc()
	for st := task.StateInitial; st <= task.StateError; st++ {
		v := 0.0
		if st == s {
			v = 1
		}
		m.TaskState.WithLabelValues(taskID, st.String()).Set(v)
	}
}

// JobFinished implements scope.Observer.
func (m *Metrics) JobFinished(_, _ string, r task.Result, elapsed time.Duration) {
	result := r.State().String()
	m.JobsTotal.WithLabelValues(result).Inc()
	m.JobDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ScopeFinished implements scope.Observer.
func (m *Metrics) ScopeFinished(_ string, s scope.State, elapsed time.Duration) {
	m.ScopesTotal.WithLabelValues(s.String()).Inc()
	m.ScopeDuration.WithLabelValues(s.String()).Observe(elapsed.Seconds())
}

// RecordRedirect counts one backpressure redirect for taskID.
func (m *Metrics) RecordRedirect(taskID string) {
	m.RedirectsTotal.WithLabelValues(taskID).Inc()
}

// RecordScenario records one finished scenario run.
func (m *Metrics) RecordScenario(scenario, outcome string, duration time.Duration) {
	m.ScenarioRunsTotal.WithLabelValues(scenario, outcome).Inc()
	m.ScenarioDuration.WithLabelValues(scenario).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RegisterExecutor exports live statistics of an executor under the
// given name.
func (m *Metrics) RegisterExecutor(name string, exec concurrency.Executor) {
	labels := prometheus.Labels{"executor": name}
	gauge := func(metric, help string, value func(concurrency.ExecutorStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "executor",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return value(exec.Stats()) })
	}
	counter := func(metric, help string, value func(concurrency.ExecutorStats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "executor",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return value(exec.Stats()) })
	}

	m.registry.MustRegister(
		gauge("queued_work", "Work items waiting in the queue",
			func(s concurrency.ExecutorStats) float64 { return float64(s.QueuedWork) }),
		gauge("running_work", "Work items currently executing",
			func(s concurrency.ExecutorStats) float64 { return float64(s.RunningWork) }),
		gauge("workers", "Number of workers",
			func(s concurrency.ExecutorStats) float64 { return float64(s.Workers) }),
		gauge("queue_utilization_percent", "Queue utilization (0-100)",
			func(s concurrency.ExecutorStats) float64 { return s.QueueUtilization }),
		counter("completed_work_total", "Work items finished",
			func(s concurrency.ExecutorStats) float64 { return float64(s.CompletedWork) }),
		counter("failed_work_total", "Work items that returned an error or panicked",
			func(s concurrency.ExecutorStats) float64 { return float64(s.FailedWork) }),
		counter("rejected_work_total", "Work items rejected because the queue was full",
			func(s concurrency.ExecutorStats) float64 { return float64(s.RejectedWork) }),
	)
}

// StatusClass converts a status code to its class label
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
