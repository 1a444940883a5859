package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	routerTypes       = []string{RouterTypeNetHTTP, RouterTypeGin, RouterTypeGorilla}
	rateLimitBackends = []string{RateLimitBackendMemory, RateLimitBackendRedis}
	logLevels         = []string{"debug", "info", "warn", "error"}
	logFormats        = []string{"json", "text"}
)

// Validate reports every invalid setting at once, joined with errors.Join.
func (c *Config) Validate() error {
	var chk checker

	chk.oneOf("router_type", c.RouterType, routerTypes)
	chk.required("service.name", c.Service.Name)

	chk.port("http.port", c.HTTP.Port)
	chk.check(c.HTTP.MaxRequestSize >= 0, "http.max_request_size cannot be negative")
	if cc := c.HTTP.Compression; cc.Enabled {
		chk.check(cc.GzipLevel >= -2 && cc.GzipLevel <= 9, "http.compression.gzip_level must be between -2 and 9")
		chk.check(cc.BrotliLevel >= 1 && cc.BrotliLevel <= 11, "http.compression.brotli_level must be between 1 and 11")
		chk.check(cc.MinSize >= 0, "http.compression.min_size cannot be negative")
	}

	if m := c.Management; m.Enabled {
		chk.port("management.port", m.Port)
		chk.check(m.Port != c.HTTP.Port, "http.port and management.port must be different")
		if m.MTLSEnabled {
			chk.requiredFor("management.tls_cert_file", m.TLSCertFile, "mtls is enabled")
			chk.requiredFor("management.tls_key_file", m.TLSKeyFile, "mtls is enabled")
			chk.requiredFor("management.tls_ca_file", m.TLSCAFile, "mtls is enabled")
		}
	}

	db := c.DynamoDB
	chk.required("dynamodb.table", db.Table)
	chk.required("dynamodb.region", db.Region)
	chk.required("dynamodb.key_attribute", db.KeyAttribute)
	chk.check(db.OperationTimeout > 0, "dynamodb.operation_timeout must be greater than zero")
	chk.check(db.MaxAttempts >= 0, "dynamodb.max_attempts cannot be negative")
	chk.check((db.AccessKeyID == "") == (db.SecretAccessKey == ""),
		"dynamodb.access_key_id and dynamodb.secret_access_key must be set together")

	if rl := c.RateLimit; rl.Enabled {
		chk.oneOf("rate_limit.backend", rl.Backend, rateLimitBackends)
		if strings.EqualFold(rl.Backend, RateLimitBackendRedis) {
			chk.requiredFor("rate_limit.redis.url", rl.Redis.URL, "rate_limit.backend=redis")
		}
		chk.check(rl.RequestsPerSecond > 0, "rate_limit.requests_per_second must be greater than zero when rate limiting is enabled")
		chk.check(rl.Burst >= 0, "rate_limit.burst cannot be negative")
	}

	obs := c.Observability
	chk.oneOf("observability.log_level", obs.LogLevel, logLevels)
	chk.oneOf("observability.log_format", obs.LogFormat, logFormats)
	if rate := obs.TracingSampleRate; rate < 0 || rate > 1 {
		chk.failf("invalid observability.tracing_sample_rate: %v (must be between 0 and 1)", rate)
	}

	return errors.Join(chk.errs...)
}

// normalize lower-cases enumerations and drops blank excluded path prefixes.
func (c *Config) normalize() {
	c.RouterType = strings.ToLower(strings.TrimSpace(c.RouterType))
	c.RateLimit.Backend = strings.ToLower(strings.TrimSpace(c.RateLimit.Backend))

	var prefixes []string
	for _, p := range c.Observability.RequestLogging.ExcludedPathPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	c.Observability.RequestLogging.ExcludedPathPrefixes = prefixes
}

type checker struct {
	errs []error
}

func (c *checker) failf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func (c *checker) check(ok bool, msg string) {
	if !ok {
		c.errs = append(c.errs, errors.New(msg))
	}
}

func (c *checker) required(key, value string) {
	c.check(strings.TrimSpace(value) != "", key+" is required")
}

func (c *checker) requiredFor(key, value, condition string) {
	c.check(strings.TrimSpace(value) != "", key+" is required when "+condition)
}

func (c *checker) port(key string, port int) {
	if port < 1 || port > 65535 {
		c.failf("invalid %s: %d (must be between 1 and 65535)", key, port)
	}
}

func (c *checker) oneOf(key, value string, allowed []string) {
	if !slices.Contains(allowed, strings.ToLower(value)) {
		c.failf("invalid %s: %s (must be one of: %v)", key, value, allowed)
	}
}
