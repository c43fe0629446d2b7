package api

import (
	"encoding/json"
	"log/slog"

	"github.com/valyala/fasthttp"
)

// JSON is a shorthand for ad-hoc response bodies.
type JSON map[string]any

// Param is one captured path parameter.
type Param struct {
	Key   string
	Value string
}

// Context wraps a fasthttp request for handlers.
type Context struct {
	RC     *fasthttp.RequestCtx
	Params []Param

	// Route is the pattern of the matched route, e.g. /api/tasks/:id/cancel.
	Route string

	logger *slog.Logger
}

func (c *Context) JSON(code int, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.RC.SetStatusCode(code)
	c.RC.SetContentType("application/json")
	_, err = c.RC.Write(b)
	return err
}

func (c *Context) Ok(data any) error {
	return c.JSON(fasthttp.StatusOK, data)
}

// Error writes a JSON error body. Internal errors are never reflected.
func (c *Context) Error(code int, msg string) error {
	return c.JSON(code, JSON{"error": msg})
}

func (c *Context) Param(key string) string {
	for _, p := range c.Params {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

func (c *Context) Header(key string) string {
	return string(c.RC.Request.Header.Peek(key))
}

func (c *Context) Log() *slog.Logger {
	return c.logger.With(
		"method", string(c.RC.Method()),
		"path", string(c.RC.Path()),
	)
}
