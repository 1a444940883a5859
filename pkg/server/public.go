package server

import (
	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/middleware/compression"
	"github.com/nimburion/itemservice/pkg/middleware/logging"
	"github.com/nimburion/itemservice/pkg/middleware/metrics"
	"github.com/nimburion/itemservice/pkg/middleware/ratelimit"
	"github.com/nimburion/itemservice/pkg/middleware/recovery"
	"github.com/nimburion/itemservice/pkg/middleware/requestid"
	"github.com/nimburion/itemservice/pkg/middleware/requestsize"
	"github.com/nimburion/itemservice/pkg/middleware/tracing"
	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// PublicAPIServer wraps Server for application traffic.
type PublicAPIServer struct {
	*Server
}

// PublicOptions carries the optional parts of the public middleware stack.
type PublicOptions struct {
	Observability config.ObservabilityConfig
	// RateLimiter enables throttling when non-nil.
	RateLimiter ratelimit.RateLimiter
	// TrustForwardedHeaders keys the rate limit by X-Forwarded-For instead of the peer address.
	TrustForwardedHeaders bool
}

// NewPublicAPIServer applies the public middleware stack to r.
// Routes must be registered on r afterwards, since adapters snapshot global middleware per route.
//
// The middleware stack is applied in the following order:
//  1. Recovery - turns panics into a 500 response
//  2. Request ID - generates/extracts request IDs for correlation
//  3. Logging - one structured entry per request
//  4. Tracing - one server span per request
//  5. Metrics - Prometheus request counters and latencies
//  6. Compression - brotli or gzip bodies when http.compression is enabled
//  7. Request size - rejects bodies over http.max_request_size
//  8. Rate limit - when a limiter is configured
func NewPublicAPIServer(cfg config.HTTPConfig, r router.Router, log logger.Logger, opts PublicOptions) *PublicAPIServer {
	stack := []router.MiddlewareFunc{
		recovery.Recovery(log),
		requestid.RequestID(),
	}

	reqLogging := opts.Observability.RequestLogging
	if reqLogging.Enabled {
		stack = append(stack, logging.WithConfig(log, logging.Config{
			Enabled:              true,
			LogStart:             reqLogging.LogStart,
			ExcludedPathPrefixes: reqLogging.ExcludedPathPrefixes,
		}))
	}

	stack = append(stack,
		tracing.Tracing(tracing.Config{TracerName: "itemservice-http"}),
		metrics.Metrics(),
	)

	if cc := cfg.Compression; cc.Enabled {
		stack = append(stack, compression.Middleware(compression.Config{
			Enabled:      true,
			Brotli:       cc.Brotli,
			Gzip:         cc.Gzip,
			GzipLevel:    cc.GzipLevel,
			BrotliLevel:  cc.BrotliLevel,
			MinSize:      cc.MinSize,
			ContentTypes: compression.DefaultConfig().ContentTypes,
		}))
	}
	if cfg.MaxRequestSize > 0 {
		stack = append(stack, requestsize.Middleware(cfg.MaxRequestSize))
	}
	if opts.RateLimiter != nil {
		stack = append(stack, ratelimit.RateLimit(opts.RateLimiter, ratelimit.Config{
			TrustForwardedHeaders: opts.TrustForwardedHeaders,
		}))
	}

	r.Use(stack...)

	serverCfg := Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &PublicAPIServer{Server: NewServer(serverCfg, r, log)}
}
