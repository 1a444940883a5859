package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/health"
	"github.com/nimburion/itemservice/pkg/item"
	"github.com/nimburion/itemservice/pkg/middleware/ratelimit"
	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/observability/metrics"
	"github.com/nimburion/itemservice/pkg/server"
	dynamostore "github.com/nimburion/itemservice/pkg/store/dynamodb"
)

// application is the wired service: store adapter, routes, servers and their lifecycle hooks.
type application struct {
	adapter *dynamostore.Adapter
	servers *server.Servers
	onStop  []server.Hook
}

func runServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	return app.servers.RunUntilSignal()
}

// newApplication connects to the table and builds both servers. An unreachable
// table only fails readiness, so GET / is served regardless.
// Nothing listens until the servers are run.
func newApplication(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	adapter, err := newAdapter(ctx, cfg.DynamoDB, log)
	if err != nil {
		return nil, err
	}

	readiness := health.NewRegistry()
	readiness.Register(health.NewDependencyChecker("dynamodb", adapter, cfg.DynamoDB.OperationTimeout).
		WithMetadata(map[string]any{
			"table":  cfg.DynamoDB.Table,
			"region": cfg.DynamoDB.Region,
		}))

	hooks := []server.Hook{{
		Name: "close dynamodb adapter",
		Run:  func(context.Context) error { return adapter.Close() },
	}}

	limiter, closer, err := newRateLimiter(ctx, cfg.RateLimit, log)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}
	if closer != nil {
		hooks = append(hooks, server.Hook{
			Name: "close rate limiter",
			Run:  func(context.Context) error { return closer.Close() },
		})
	}
	if checkable, ok := limiter.(health.Checkable); ok {
		readiness.Register(health.NewDependencyChecker("rate_limiter", checkable, cfg.RateLimit.Redis.OperationTimeout))
	}
	hooks = append(hooks, server.Hook{Name: "flush logger", Run: flushLogger(log)})

	table := dynamostore.NewTable(adapter, dynamostore.TableConfig{
		KeyAttribute:   cfg.DynamoDB.KeyAttribute,
		ConsistentRead: cfg.DynamoDB.ConsistentRead,
	})
	handler := item.NewHandler(table, log)

	servers, err := server.Build(server.Options{
		Config:      cfg,
		Logger:      log,
		Readiness:   readiness,
		Metrics:     metrics.NewRegistry(),
		RateLimiter: limiter,
		Routes:      handler.RegisterRoutes,
		OnStop:      hooks,
	})
	if err != nil {
		_ = adapter.Close()
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("build http servers: %w", err)
	}

	return &application{adapter: adapter, servers: servers, onStop: hooks}, nil
}

func newAdapter(ctx context.Context, cfg config.DynamoDBConfig, log logger.Logger) (*dynamostore.Adapter, error) {
	adapter, err := dynamostore.NewAdapter(ctx, dynamostore.Config{
		Region:           cfg.Region,
		Endpoint:         cfg.Endpoint,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		SessionToken:     cfg.SessionToken,
		Table:            cfg.Table,
		OperationTimeout: cfg.OperationTimeout,
		MaxAttempts:      cfg.MaxAttempts,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect dynamodb table %s: %w", cfg.Table, err)
	}
	return adapter, nil
}

// newRateLimiter returns a nil limiter when rate limiting is disabled.
// The closer is non-nil only for backends holding connections.
func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig, log logger.Logger) (ratelimit.RateLimiter, io.Closer, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Backend {
	case config.RateLimitBackendRedis:
		limiter, err := ratelimit.NewRedisRateLimiter(ctx, cfg.Redis, cfg.RequestsPerSecond, cfg.Burst, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis rate limiter: %w", err)
		}
		return limiter, limiter, nil
	case config.RateLimitBackendMemory, "":
		return ratelimit.NewTokenBucketLimiter(cfg.RequestsPerSecond, cfg.Burst), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit backend %q", cfg.Backend)
	}
}

// checkDependencies verifies the table, and Redis when it backs the rate limiter.
func checkDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	var errs []error

	adapter, err := newAdapter(ctx, cfg.DynamoDB, log)
	if err != nil {
		errs = append(errs, err)
	} else {
		if err := adapter.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		} else {
			log.Info("dependency reachable", "dependency", "dynamodb", "table", cfg.DynamoDB.Table)
		}
		_ = adapter.Close()
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		limiter, _, err := newRateLimiter(ctx, cfg.RateLimit, log)
		if err != nil {
			errs = append(errs, err)
		} else {
			log.Info("dependency reachable", "dependency", "redis")
			if closer, ok := limiter.(io.Closer); ok {
				_ = closer.Close()
			}
		}
	}

	return errors.Join(errs...)
}

func flushLogger(log logger.Logger) func(context.Context) error {
	return func(context.Context) error {
		if syncer, ok := log.(interface{ Sync() error }); ok {
			// Sync fails on terminals and pipes.
			_ = syncer.Sync()
		}
		return nil
	}
}
