package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/fluxorio/playground/pkg/observability/metrics"
)

const (
	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"

	claimsKey = "claims"
)

// RequestID echoes the caller's request ID or generates one.
func RequestID() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) error {
			id := c.Header(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.RC.Response.Header.Set(HeaderRequestID, id)
			c.logger = c.logger.With("request_id", id)
			return next(c)
		}
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					c.Log().Error("panic recovered", "panic", r)
					err = c.Error(fasthttp.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}

// Metrics records request count and latency by route pattern.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) error {
			start := time.Now()
			err := next(c)
			status := c.RC.Response.StatusCode()
			if err != nil {
				status = fasthttp.StatusInternalServerError
			}
			m.RecordHTTPRequest(string(c.RC.Method()), c.Route, metrics.StatusClass(status), time.Since(start))
			return err
		}
	}
}

// JWTConfig configures bearer-token authentication.
type JWTConfig struct {
	// Secret verifies HS256 signatures.
	Secret string

	// Leeway allows small clock skew for exp/nbf/iat validation.
	Leeway time.Duration

	// SkipPaths are served without a token.
	SkipPaths []string
}

// JWT rejects requests without a valid HS256 bearer token. The parsed
// claims are available through Claims.
func JWT(cfg JWTConfig) Middleware {
	if cfg.Secret == "" {
		panic("api: JWT secret must be provided")
	}

	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}

	unauthorized := func(c *Context, err error) error {
		c.Log().Debug("request rejected", "error", err)
		c.RC.Response.Header.Set("WWW-Authenticate", `Bearer realm="playground", error="invalid_token"`)
		return c.Error(fasthttp.StatusUnauthorized, "unauthorized")
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) error {
			path := string(c.RC.Path())
			for _, skip := range cfg.SkipPaths {
				if path == skip {
					return next(c)
				}
			}

			scheme, token, ok := strings.Cut(c.Header("Authorization"), " ")
			if !ok || scheme != "Bearer" || token == "" {
				return unauthorized(c, fmt.Errorf("missing bearer token"))
			}

			parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, keyFunc, options...)
			if err != nil {
				return unauthorized(c, fmt.Errorf("invalid token: %w", err))
			}
			claims, ok := parsed.Claims.(jwt.MapClaims)
			if !ok || !parsed.Valid {
				return unauthorized(c, fmt.Errorf("invalid token claims"))
			}

			c.RC.SetUserValue(claimsKey, claims)
			return next(c)
		}
	}
}

// Claims returns the claims stored by JWT.
func Claims(c *Context) (jwt.MapClaims, bool) {
	claims, ok := c.RC.UserValue(claimsKey).(jwt.MapClaims)
	return claims, ok
}

// IssueToken signs an HS256 token for subject, valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
