package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/testutil"
	"github.com/nimburion/itemservice/pkg/testutil/dynamotest"
)

func testConfig(t *testing.T) (*config.Config, *dynamotest.Server) {
	t.Helper()
	srv := dynamotest.New(t, "HelloWorldTable", "ID")

	cfg := config.DefaultConfig()
	cfg.DynamoDB.Endpoint = srv.URL
	cfg.DynamoDB.AccessKeyID = "test"
	cfg.DynamoDB.SecretAccessKey = "test"
	cfg.DynamoDB.OperationTimeout = 2 * time.Second
	cfg.DynamoDB.MaxAttempts = 1
	return cfg, srv
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestApplication(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	app, err := newApplication(context.Background(), cfg, testutil.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.adapter.Close() })
	return app
}

func TestApplication_ServesItemRoutes(t *testing.T) {
	cfg, srv := testConfig(t)
	app := newTestApplication(t, cfg)
	public := app.servers.Public.Router()

	rec := serve(public, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, World!", rec.Body.String())

	rec = serve(public, http.MethodPost, "/item", `{"ID":"42","name":"widget","price":9.99}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Item created successfully"}`, rec.Body.String())
	assert.Equal(t, 1, srv.Len("HelloWorldTable"))

	rec = serve(public, http.MethodGet, "/item/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ID":"42","name":"widget","price":9.99}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(public, http.MethodGet, "/item/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Item not found"}`, rec.Body.String())
}

func TestApplication_StoreRejectionIsBadRequest(t *testing.T) {
	cfg, srv := testConfig(t)
	app := newTestApplication(t, cfg)
	srv.Fail("PutItem", "ValidationException", "One or more parameter values were invalid")

	rec := serve(app.servers.Public.Router(), http.MethodPost, "/item", `{"ID":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ValidationException")
}

func TestApplication_ReadinessFollowsTable(t *testing.T) {
	cfg, srv := testConfig(t)
	app := newTestApplication(t, cfg)
	require.NotNil(t, app.servers.Management)
	mgmt := app.servers.Management.Router()

	rec := serve(mgmt, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "HelloWorldTable")

	srv.FailWithStatus("DescribeTable", http.StatusBadRequest, "ResourceNotFoundException", "Requested resource not found")
	rec = serve(mgmt, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(mgmt, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_StartsWithoutTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config, *dynamotest.Server)
	}{
		{
			name:   "missing table",
			mutate: func(cfg *config.Config, _ *dynamotest.Server) { cfg.DynamoDB.Table = "OtherTable" },
		},
		{
			name: "describe not permitted",
			mutate: func(_ *config.Config, srv *dynamotest.Server) {
				srv.Fail("DescribeTable", "AccessDeniedException", "not authorized to perform: dynamodb:DescribeTable")
			},
		},
		{
			name:   "store unreachable",
			mutate: func(cfg *config.Config, _ *dynamotest.Server) { cfg.DynamoDB.Endpoint = "http://127.0.0.1:1" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, srv := testConfig(t)
			tt.mutate(cfg, srv)
			app := newTestApplication(t, cfg)

			rec := serve(app.servers.Public.Router(), http.MethodGet, "/", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Hello, World!", rec.Body.String())

			mgmt := app.servers.Management.Router()
			assert.Equal(t, http.StatusServiceUnavailable, serve(mgmt, http.MethodGet, "/ready", "").Code)
			assert.Equal(t, http.StatusOK, serve(mgmt, http.MethodGet, "/health", "").Code)
		})
	}
}

func TestApplication_ItemRoutesWithoutDescribePermission(t *testing.T) {
	cfg, srv := testConfig(t)
	srv.Fail("DescribeTable", "AccessDeniedException", "not authorized to perform: dynamodb:DescribeTable")
	public := newTestApplication(t, cfg).servers.Public.Router()

	rec := serve(public, http.MethodPost, "/item", `{"ID":"7","name":"gadget"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = serve(public, http.MethodGet, "/item/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ID":"7","name":"gadget"}`, rec.Body.String())
}

func TestApplication_MemoryRateLimit(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Backend = config.RateLimitBackendMemory
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	app := newTestApplication(t, cfg)
	public := app.servers.Public.Router()

	assert.Equal(t, http.StatusOK, serve(public, http.MethodGet, "/", "").Code)
	rec := serve(public, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestNewRateLimiter(t *testing.T) {
	log := testutil.NewMockLogger()

	limiter, closer, err := newRateLimiter(context.Background(), config.RateLimitConfig{}, log)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.Nil(t, closer)

	_, _, err = newRateLimiter(context.Background(), config.RateLimitConfig{Enabled: true, Backend: "memcached", RequestsPerSecond: 1}, log)
	assert.ErrorContains(t, err, "unsupported rate limit backend")

	_, _, err = newRateLimiter(context.Background(), config.RateLimitConfig{
		Enabled:           true,
		Backend:           config.RateLimitBackendRedis,
		RequestsPerSecond: 1,
		Redis:             config.RateLimitRedisConfig{URL: "not-a-redis-url"},
	}, log)
	assert.ErrorContains(t, err, "create redis rate limiter")
}

func TestCheckDependencies(t *testing.T) {
	cfg, _ := testConfig(t)
	log := testutil.NewMockLogger()

	require.NoError(t, checkDependencies(context.Background(), cfg, log))
	_, found := log.Find("info", "dependency reachable")
	assert.True(t, found)

	cfg.DynamoDB.Table = "MissingTable"
	assert.Error(t, checkDependencies(context.Background(), cfg, log))
}

func TestShutdownHooksCloseAdapter(t *testing.T) {
	cfg, _ := testConfig(t)
	app := newTestApplication(t, cfg)

	names := make([]string, 0, len(app.onStop))
	for _, hook := range app.onStop {
		names = append(names, hook.Name)
		require.NoError(t, hook.Run(context.Background()))
	}
	assert.Equal(t, []string{"close dynamodb adapter", "flush logger"}, names)
	assert.Error(t, app.adapter.Ping(context.Background()))
}
