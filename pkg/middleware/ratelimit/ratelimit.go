// Package ratelimit throttles public API requests per client.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nimburion/itemservice/pkg/observability/metrics"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// RateLimiter reports whether the client identified by key may proceed.
// Implementations are shared by all request goroutines.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// defaultIdleTTL is how long an unused bucket is kept before it is dropped.
const defaultIdleTTL = 10 * time.Minute

// TokenBucketLimiter keeps an in-process token bucket per key. Buckets unused
// for ten minutes are evicted, so a stream of distinct clients does not grow
// memory without bound.
type TokenBucketLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// NewTokenBucketLimiter refills requestsPerSecond tokens per second and lets
// up to burst requests through at once.
func NewTokenBucketLimiter(requestsPerSecond, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limit:   rate.Limit(requestsPerSecond),
		burst:   burst,
		ttl:     defaultIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.ttl {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.tokens.AllowN(now, 1)
}

func (l *TokenBucketLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.ttl {
			delete(l.buckets, key)
		}
	}
	l.swept = now
}

// Len reports how many client buckets are held.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Config tunes the middleware; the zero value keys by the peer address and
// asks rejected clients to retry after one second.
type Config struct {
	KeyFunc           func(router.Context) string
	RetryAfterSeconds int
	// TrustForwardedHeaders keys by X-Forwarded-For or X-Real-IP. Enable it
	// only behind a proxy that overwrites those headers, or any client can
	// pick its own bucket.
	TrustForwardedHeaders bool
}

// RateLimit answers 429 {"error":"rate limit exceeded"} with a Retry-After
// header when limiter rejects the request's key.
func RateLimit(limiter RateLimiter, cfg Config) router.MiddlewareFunc {
	key := cfg.KeyFunc
	switch {
	case key != nil:
	case cfg.TrustForwardedHeaders:
		key = func(c router.Context) string { return ClientIP(c.Request()) }
	default:
		key = func(c router.Context) string { return PeerIP(c.Request()) }
	}
	retryAfter := "1"
	if cfg.RetryAfterSeconds > 0 {
		retryAfter = strconv.Itoa(cfg.RetryAfterSeconds)
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if limiter.Allow(req.Context(), key(c)) {
				return next(c)
			}
			metrics.RecordRateLimited(req.Method, c.Route())
			c.Response().Header().Set("Retry-After", retryAfter)
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
	}
}

// ClientIP picks the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address. Both headers are client-controlled unless a trusted proxy
// rewrites them.
func ClientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return PeerIP(r)
}

// PeerIP is the connection's remote address without its port.
func PeerIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
