package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/observability/logger"
)

const (
	defaultRedisPrefix    = "itemservice:ratelimit"
	defaultRedisOpTimeout = 100 * time.Millisecond
	redisConnectTimeout   = 5 * time.Second
)

// fixedWindowSource counts one hit and starts the window expiry on the first
// hit, in a single round trip so a counter never outlives its window.
const fixedWindowSource = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var fixedWindow = redis.NewScript(fixedWindowSource)

// redisClient is the part of *redis.Client the limiter uses.
type redisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisRateLimiter shares a fixed-window counter per client key between
// replicas. A key gets requestsPerSecond+burst requests per window.
type RedisRateLimiter struct {
	client    redisClient
	limit     int64
	window    time.Duration
	opTimeout time.Duration
	prefix    string
	log       logger.Logger
}

// NewRedisRateLimiter connects to cfg.URL and checks the connection with PING.
func NewRedisRateLimiter(ctx context.Context, cfg config.RateLimitRedisConfig, requestsPerSecond, burst int, log logger.Logger) (*RedisRateLimiter, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("redis URL is required for distributed rate limiting")
	case requestsPerSecond <= 0:
		return nil, errors.New("requests_per_second must be greater than zero")
	case burst < 0:
		return nil, errors.New("burst cannot be negative")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultRedisOpTimeout
	}
	opts.ReadTimeout, opts.WriteTimeout = timeout, timeout

	client := redis.NewClient(opts)
	connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(connectCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis rate limiter ping failed: %w", err)
	}

	r := newRedisRateLimiterFromClient(client, cfg.Window, requestsPerSecond, burst, timeout, cfg.Prefix, log)
	log.Info("redis rate limiter connected", "limit", r.limit, "window", r.window, "prefix", r.prefix)
	return r, nil
}

func newRedisRateLimiterFromClient(client redisClient, window time.Duration, requestsPerSecond, burst int, timeout time.Duration, prefix string, log logger.Logger) *RedisRateLimiter {
	r := &RedisRateLimiter{
		client:    client,
		limit:     int64(requestsPerSecond) + int64(burst),
		window:    window,
		opTimeout: timeout,
		prefix:    prefix,
		log:       log,
	}
	if r.window <= 0 {
		r.window = time.Second
	}
	if r.prefix == "" {
		r.prefix = defaultRedisPrefix
	}
	return r
}

// Allow counts a request for key. While Redis is failing every request is let through.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	n, err := r.hit(ctx, r.prefix+":"+key)
	if err != nil {
		r.log.WithContext(ctx).Error("redis rate limiter increment failed", "key", key, "error", err)
		return true
	}
	return n <= r.limit
}

// hit runs fixedWindow by hash and sends the source only when Redis does not have it cached.
func (r *RedisRateLimiter) hit(ctx context.Context, key string) (int64, error) {
	keys, ttl := []string{key}, r.window.Milliseconds()
	n, err := r.client.EvalSha(ctx, fixedWindow.Hash(), keys, ttl).Int64()
	if err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		n, err = r.client.Eval(ctx, fixedWindowSource, keys, ttl).Int64()
	}
	return n, err
}

// HealthCheck pings Redis for the readiness registry.
func (r *RedisRateLimiter) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis rate limiter health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisRateLimiter) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
