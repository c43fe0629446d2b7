package api

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fluxorio/playground/pkg/core"
)

// Server serves a Router over fasthttp.
type Server struct {
	addr   string
	server *fasthttp.Server
	logger *slog.Logger
}

func NewServer(addr string, router *Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Server{
		addr:   addr,
		logger: logger,
		server: &fasthttp.Server{
			Handler:               router.Handler(),
			Name:                  "playground",
			NoDefaultServerHeader: true,
			ReadTimeout:           5 * time.Second,
			WriteTimeout:          5 * time.Second,
			IdleTimeout:           30 * time.Second,
		},
	}
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", "addr", s.addr)
	return s.server.ListenAndServe(s.addr)
}

// Serve blocks serving ln until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("api server listening", "addr", ln.Addr().String())
	return s.server.Serve(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}
