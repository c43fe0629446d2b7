package api

import (
	"log/slog"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/fluxorio/playground/pkg/core"
)

type HandlerFunc func(c *Context) error
type Middleware func(next HandlerFunc) HandlerFunc

type route struct {
	pattern    string
	segments   []string // ":name" captures a parameter
	handler    HandlerFunc
	middleware []Middleware
}

// Router is a small GET/POST router for fasthttp. Routes are matched in
// registration order.
type Router struct {
	routes     map[string][]*route
	middleware []Middleware
	logger     *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Router{
		routes: make(map[string][]*route, 2),
		logger: logger,
	}
}

// Use adds middleware applied to every matched route, outermost first.
func (r *Router) Use(mw ...Middleware) { r.middleware = append(r.middleware, mw...) }

func (r *Router) GET(path string, h HandlerFunc, mw ...Middleware) {
	r.add(fasthttp.MethodGet, path, h, mw)
}

func (r *Router) POST(path string, h HandlerFunc, mw ...Middleware) {
	r.add(fasthttp.MethodPost, path, h, mw)
}

func (r *Router) add(method, pattern string, h HandlerFunc, mw []Middleware) {
	r.routes[method] = append(r.routes[method], &route{
		pattern:    pattern,
		segments:   split(pattern),
		handler:    h,
		middleware: append([]Middleware(nil), mw...),
	})
}

func (r *Router) Handler() fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		c := &Context{RC: rc, logger: r.logger}

		routes, ok := r.routes[string(rc.Method())]
		if !ok {
			_ = c.Error(fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}

		parts := split(string(rc.Path()))
		for _, rt := range routes {
			params, ok := rt.match(parts)
			if !ok {
				continue
			}
			c.Route, c.Params = rt.pattern, params
			if err := r.chain(rt)(c); err != nil {
				c.Log().Error("handler error", "error", err)
				_ = c.Error(fasthttp.StatusInternalServerError, "internal server error")
			}
			return
		}
		_ = c.Error(fasthttp.StatusNotFound, "not found")
	}
}

func (r *Router) chain(rt *route) HandlerFunc {
	h := rt.handler
	for i := len(rt.middleware) - 1; i >= 0; i-- {
		h = rt.middleware[i](h)
	}
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

func (rt *route) match(parts []string) ([]Param, bool) {
	if len(parts) != len(rt.segments) {
		return nil, false
	}
	var params []Param
	for i, seg := range rt.segments {
		if name, ok := strings.CutPrefix(seg, ":"); ok && name != "" {
			params = append(params, Param{Key: name, Value: parts[i]})
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// split breaks a path into its non-empty segments.
func split(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}
