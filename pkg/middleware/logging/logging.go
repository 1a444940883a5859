// Package logging emits one structured log entry per served request.
package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// Log field names.
const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
)

// Config configures request logging middleware behavior.
type Config struct {
	Enabled bool
	// LogStart adds a debug entry when a request begins.
	LogStart bool
	// ExcludedPathPrefixes are not logged at all, e.g. probes.
	ExcludedPathPrefixes []string
}

// DefaultConfig returns default request logging behavior.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Logging creates middleware with default configuration.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates request logging middleware with custom configuration.
// Completed requests log at info, 4xx at warn, 5xx and returned errors at error.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		if !cfg.Enabled {
			return next
		}
		return func(c router.Context) error {
			req := c.Request()
			if cfg.excluded(req.URL.Path) {
				return next(c)
			}

			start := time.Now()
			if cfg.LogStart {
				log.WithContext(req.Context()).Debug("request started",
					FieldMethod, req.Method,
					FieldPath, req.URL.Path,
				)
			}

			err := next(c)

			// Read the request again: inner middleware may have attached the request ID.
			req = c.Request()
			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				status = http.StatusInternalServerError
			}

			fields := []any{
				FieldMethod, req.Method,
				FieldPath, req.URL.Path,
				FieldRoute, c.Route(),
				FieldStatus, status,
				FieldDurationMS, float64(time.Since(start).Microseconds()) / 1000,
				FieldRemoteAddr, req.RemoteAddr,
				FieldUserAgent, req.UserAgent(),
			}
			if requestID := logger.RequestIDFromContext(req.Context()); requestID != "" {
				fields = append(fields, FieldRequestID, requestID)
			}

			switch {
			case err != nil:
				log.Error("request failed", append(fields, FieldError, err.Error())...)
			case status >= http.StatusInternalServerError:
				log.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				log.Warn("request completed", fields...)
			default:
				log.Info("request completed", fields...)
			}
			return err
		}
	}
}

func (cfg Config) excluded(path string) bool {
	for _, prefix := range cfg.ExcludedPathPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
