// Package tracing opens a server span for every public API request.
package tracing

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/itemservice/pkg/middleware/requestid"
	"github.com/nimburion/itemservice/pkg/server/router"
)

const defaultTracerName = "http-server"

type Config struct {
	// TracerName defaults to "http-server".
	TracerName string
	// SpanName defaults to "HTTP <method> <route>".
	SpanName func(router.Context) string
	// SkipPrefixes lists request paths that are served without a span.
	SkipPrefixes []string
}

func (cfg Config) skip(path string) bool {
	for _, prefix := range cfg.SkipPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func spanName(c router.Context) string {
	route := c.Route()
	if route == "" {
		route = c.Request().URL.Path
	}
	return "HTTP " + c.Request().Method + " " + route
}

// Tracing continues any trace carried by the request headers and makes the
// server span current for the handler, so store spans nest under it.
// 4xx answers leave the span OK; handler errors and 5xx mark it failed.
func Tracing(cfg Config) router.MiddlewareFunc {
	name := cfg.TracerName
	if name == "" {
		name = defaultTracerName
	}
	naming := cfg.SpanName
	if naming == nil {
		naming = spanName
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if cfg.skip(req.URL.Path) {
				return next(c)
			}

			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := otel.Tracer(name).Start(ctx, naming(c),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(req.Method),
					semconv.HTTPRouteKey.String(c.Route()),
					semconv.HTTPTargetKey.String(req.URL.RequestURI()),
					semconv.HTTPUserAgentKey.String(req.UserAgent()),
					semconv.NetSockPeerAddrKey.String(req.RemoteAddr),
				),
			)
			defer span.End()
			if id := requestid.GetRequestID(req.Context()); id != "" {
				span.SetAttributes(attribute.String("request.id", id))
			}

			c.SetRequest(req.WithContext(ctx))
			if err := next(c); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}

			status := c.Response().Status()
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return nil
		}
	}
}
