//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/testutil"
)

// TestRedisRateLimiter_Integration shares one window between two limiters, as two replicas would.
func TestRedisRateLimiter_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	cfg := config.RateLimitRedisConfig{
		URL:              url,
		MaxConns:         4,
		OperationTimeout: time.Second,
		Window:           2 * time.Second,
		Prefix:           "itemservice:ratelimit:it",
	}

	first, err := NewRedisRateLimiter(ctx, cfg, 2, 1, testutil.NewMockLogger())
	if err != nil {
		t.Fatalf("create first limiter: %v", err)
	}
	defer first.Close()
	second, err := NewRedisRateLimiter(ctx, cfg, 2, 1, testutil.NewMockLogger())
	if err != nil {
		t.Fatalf("create second limiter: %v", err)
	}
	defer second.Close()

	if err := first.HealthCheck(ctx); err != nil {
		t.Fatalf("health check: %v", err)
	}

	allowed := 0
	for i := 0; i < 6; i++ {
		limiter := first
		if i%2 == 1 {
			limiter = second
		}
		if limiter.Allow(ctx, "203.0.113.7") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected 3 requests allowed across replicas, got %d", allowed)
	}

	if !first.Allow(ctx, "198.51.100.1") {
		t.Fatal("expected a different client to have its own window")
	}
}
