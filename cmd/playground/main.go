// Command playground serves the task orchestration scenarios over HTTP and
// streams task states over websocket. With -run it executes one scenario,
// prints every state update and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fluxorio/playground/pkg/api"
	"github.com/fluxorio/playground/pkg/config"
	"github.com/fluxorio/playground/pkg/core"
	"github.com/fluxorio/playground/pkg/core/concurrency"
	"github.com/fluxorio/playground/pkg/observability/metrics"
	"github.com/fluxorio/playground/pkg/observability/tracing"
	"github.com/fluxorio/playground/pkg/playground"
	"github.com/fluxorio/playground/pkg/sink"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file (default $CONFIG_PATH)")
	scenario := flag.String("run", "", "run one scenario, print its state updates and exit")
	flag.Parse()

	if err := run(*configPath, *scenario); err != nil {
		fmt.Fprintln(os.Stderr, "playground:", err)
		os.Exit(1)
	}
}

func run(configPath, scenario string) error {
	cfg, err := config.LoadApp(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, scenario != "")
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.close(ctx); err != nil {
			a.logger.Error("shutdown incomplete", "error", err)
		}
	}()

	if scenario != "" {
		s, err := playground.ParseScenario(scenario)
		if err != nil {
			return err
		}
		return a.runOnce(ctx, s, os.Stdout)
	}
	return a.serve(ctx)
}

type app struct {
	cfg    config.AppConfig
	logger *slog.Logger

	tracing    *tracing.Provider
	metrics    *metrics.Metrics
	dispatcher concurrency.Executor
	background concurrency.Executor

	hub      *sink.Hub
	bus      *sink.Bus
	channels *sink.Channels

	orch   *playground.Orchestrator
	stream *api.StateStream
}

// newApp wires every component from cfg. With cli set, updates are also
// fanned out to per-task channels for printing.
func newApp(ctx context.Context, cfg config.AppConfig, cli bool) (*app, error) {
	logger, err := core.NewLogger(core.LoggerConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(logger)

	tp, err := tracing.New(tracing.Config{
		ServiceName:    "playground",
		Exporter:       cfg.Observability.TracingExporter,
		ZipkinEndpoint: cfg.Observability.ZipkinEndpoint,
		SampleRate:     cfg.Observability.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	tp.Install()

	a := &app{cfg: cfg, logger: logger, tracing: tp, bus: sink.NewBus()}

	a.dispatcher = concurrency.NewExecutor(ctx, concurrency.ExecutorConfig{
		Name:      "dispatch",
		Workers:   2,
		QueueSize: cfg.Scheduler.QueueSize,
		Logger:    logger,
	})
	a.background = concurrency.NewExecutor(ctx, concurrency.ExecutorConfig{
		Name:      "background",
		Workers:   cfg.Scheduler.Workers,
		QueueSize: cfg.Scheduler.QueueSize,
		Logger:    logger,
	})

	observers := []sink.Observer{
		sink.NewLogging(logger.With("component", "sink")),
		a.bus,
	}
	if cfg.Observability.MetricsEnabled {
		a.metrics = metrics.New()
		a.metrics.RegisterExecutor("dispatch", a.dispatcher)
		a.metrics.RegisterExecutor("background", a.background)
		observers = append(observers, sink.NewMetrics(a.metrics))
	}
	if cli {
		a.channels = sink.NewChannels(32)
		observers = append(observers, a.channels)
	}
	a.hub = sink.NewHub(observers...)

	a.orch = playground.New(ctx, playground.Config{
		Sink:       a.hub,
		Dispatcher: a.dispatcher,
		Background: a.background,
		Timing: playground.Timing{
			Scale:       cfg.Timing.Scale,
			SettleDelay: cfg.Timing.SettleDelay,
		},
		Logger:  logger.With("component", "orchestrator"),
		Metrics: a.metrics,
		Tracer:  tp.Tracer("github.com/fluxorio/playground"),
	})
	a.stream = api.NewStateStream(a.bus, a.hub, logger.With("component", "ws"))

	return a, nil
}

// serve runs the API and websocket servers until ctx is done.
func (a *app) serve(ctx context.Context) error {
	router := api.NewRouter(a.logger.With("component", "api"))
	api.Register(router, api.Options{
		Controller: a.orch,
		States:     a.hub,
		Metrics:    a.metrics,
		JWTSecret:  a.cfg.API.JWTSecret,
	})

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	var apiServer *api.Server
	if addr := a.cfg.Server.APIAddr; addr != "" {
		apiServer = api.NewServer(addr, router, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	var wsServer *http.Server
	if addr := a.cfg.Server.WSAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws/states", a.stream)
		wsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("websocket server listening", "addr", addr)
			if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("websocket server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case serveErr = <-errCh:
		a.logger.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.stream.Close()
	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("websocket server shutdown", "error", err)
		}
	}
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("api server shutdown", "error", err)
		}
	}
	wg.Wait()
	return serveErr
}

// runOnce executes s and prints every update as "<task> <STATE>".
func (a *app) runOnce(ctx context.Context, s playground.Scenario, w io.Writer) error {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range sink.TaskIDs {
		updates := a.channels.Updates(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range updates {
				mu.Lock()
				fmt.Fprintf(w, "%s %s\n", u.Task, u.State)
				mu.Unlock()
			}
		}()
	}

	err := a.orch.Run(ctx, s)
	a.channels.Close()
	wg.Wait()

	if err != nil {
		return fmt.Errorf("scenario %s: %w", s, err)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.orch.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher: %w", err))
	}
	if err := a.background.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("background executor: %w", err))
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	return errors.Join(errs...)
}
