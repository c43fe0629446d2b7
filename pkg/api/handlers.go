package api

import (
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fluxorio/playground/pkg/observability/metrics"
	"github.com/fluxorio/playground/pkg/playground"
	"github.com/fluxorio/playground/pkg/sink"
	"github.com/fluxorio/playground/pkg/task"
)

// Controller is the command surface of the orchestrator.
type Controller interface {
	Start(s playground.Scenario) (string, error)
	CancelLongComputation(id sink.TaskID) error
}

// StateSource exposes the latest published state per task.
type StateSource interface {
	Snapshot() map[sink.TaskID]sink.Update
}

// Options wires the HTTP routes.
type Options struct {
	Controller Controller
	States     StateSource

	// Metrics, when set, serves /metrics and records request metrics.
	Metrics *metrics.Metrics

	// JWTSecret, when set, protects every /api route.
	JWTSecret string
}

type handlers struct {
	ctl    Controller
	states StateSource
}

// Register mounts the playground routes on r.
func Register(r *Router, opts Options) {
	h := &handlers{ctl: opts.Controller, states: opts.States}

	r.Use(RequestID(), Recovery())
	if opts.Metrics != nil {
		r.Use(Metrics(opts.Metrics))
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(opts.Metrics.Handler())
		r.GET("/metrics", func(c *Context) error {
			metricsHandler(c.RC)
			return nil
		})
	}

	var protected []Middleware
	if opts.JWTSecret != "" {
		protected = append(protected, JWT(JWTConfig{Secret: opts.JWTSecret, Leeway: 5 * time.Second}))
	}

	r.GET("/healthz", h.health)
	r.GET("/api/scenarios", h.listScenarios, protected...)
	r.POST("/api/scenarios/:name", h.startScenario, protected...)
	r.POST("/api/tasks/:id/cancel", h.cancelTask, protected...)
	r.GET("/api/states", h.snapshot, protected...)
}

func (h *handlers) health(c *Context) error {
	return c.Ok(JSON{"status": "ok"})
}

func (h *handlers) listScenarios(c *Context) error {
	return c.Ok(JSON{"scenarios": playground.Scenarios()})
}

func (h *handlers) startScenario(c *Context) error {
	s, err := playground.ParseScenario(c.Param("name"))
	if err != nil {
		return c.Error(fasthttp.StatusNotFound, "unknown scenario")
	}

	runID, err := h.ctl.Start(s)
	switch {
	case err == nil:
	case errors.Is(err, playground.ErrClosed):
		return c.Error(fasthttp.StatusServiceUnavailable, "shutting down")
	default:
		c.Log().Warn("scenario not dispatched", "scenario", string(s), "error", err)
		return c.Error(fasthttp.StatusServiceUnavailable, "dispatcher busy")
	}

	c.Log().Info("scenario dispatched", "scenario", string(s), "run_id", runID)
	return c.JSON(fasthttp.StatusAccepted, JSON{"run_id": runID, "scenario": s})
}

func (h *handlers) cancelTask(c *Context) error {
	id, err := sink.ParseTaskID(c.Param("id"))
	if err != nil {
		return c.Error(fasthttp.StatusBadRequest, "unknown task")
	}
	if err := h.ctl.CancelLongComputation(id); err != nil {
		return err
	}
	return c.JSON(fasthttp.StatusAccepted, JSON{"task": id, "status": "cancel requested"})
}

type stateView struct {
	State task.State `json:"state"`
	Seq   uint64     `json:"seq"`
	At    time.Time  `json:"at"`
}

func (h *handlers) snapshot(c *Context) error {
	snap := h.states.Snapshot()
	out := make(map[sink.TaskID]stateView, len(sink.TaskIDs))
	for _, id := range sink.TaskIDs {
		u, ok := snap[id]
		if !ok {
			out[id] = stateView{State: task.StateInitial}
			continue
		}
		out[id] = stateView{State: u.State, Seq: u.Seq, At: u.At}
	}
	return c.Ok(out)
}
