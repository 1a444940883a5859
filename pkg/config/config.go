// Package config loads the item service settings from defaults, an optional
// config file, an optional secrets file and the environment.
package config

import "time"

// Supported router adapters.
const (
	RouterTypeGin     = "gin"
	RouterTypeNetHTTP = "nethttp"
	RouterTypeGorilla = "gorilla"
)

// Rate limiter backends. Memory keeps a token bucket per client in this
// process; redis shares fixed-window counters between replicas.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config is the full set of settings. Keys are the mapstructure tags joined
// with dots, e.g. dynamodb.table. Fields tagged redact are never printed.
type Config struct {
	RouterType    string              `mapstructure:"router_type"`
	Service       ServiceConfig       `mapstructure:"service"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Management    ManagementConfig    `mapstructure:"management"`
	DynamoDB      DynamoDBConfig      `mapstructure:"dynamodb"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig is the public item API listener.
type HTTPConfig struct {
	Port           int               `mapstructure:"port"`
	ReadTimeout    time.Duration     `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration     `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration     `mapstructure:"idle_timeout"`
	MaxRequestSize int64             `mapstructure:"max_request_size"`
	Compression    CompressionConfig `mapstructure:"compression"`
}

// CompressionConfig controls brotli and gzip encoding of item API responses.
// Bodies shorter than MinSize bytes are sent as-is.
type CompressionConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Brotli      bool `mapstructure:"brotli"`
	Gzip        bool `mapstructure:"gzip"`
	GzipLevel   int  `mapstructure:"gzip_level"`
	BrotliLevel int  `mapstructure:"brotli_level"`
	MinSize     int  `mapstructure:"min_size"`
}

// ManagementConfig is the health, metrics and version listener. With mTLS on,
// all three file settings are required.
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MTLSEnabled  bool          `mapstructure:"mtls_enabled"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
	TLSCAFile    string        `mapstructure:"tls_ca_file"`
}

// DynamoDBConfig locates the item table. Without static credentials the AWS
// default chain is used. MaxAttempts 0 keeps the SDK retry default.
type DynamoDBConfig struct {
	Table            string        `mapstructure:"table"`
	Region           string        `mapstructure:"region"`
	Endpoint         string        `mapstructure:"endpoint"`
	AccessKeyID      string        `mapstructure:"access_key_id" redact:"true"`
	SecretAccessKey  string        `mapstructure:"secret_access_key" redact:"true"`
	SessionToken     string        `mapstructure:"session_token" redact:"true"`
	KeyAttribute     string        `mapstructure:"key_attribute"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	ConsistentRead   bool          `mapstructure:"consistent_read"`
}

type ObservabilityConfig struct {
	LogLevel          string               `mapstructure:"log_level"`
	LogFormat         string               `mapstructure:"log_format"`
	ServiceName       string               `mapstructure:"service_name"`
	TracingEnabled    bool                 `mapstructure:"tracing_enabled"`
	TracingSampleRate float64              `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string               `mapstructure:"tracing_endpoint"`
	RequestLogging    RequestLoggingConfig `mapstructure:"request_logging"`
}

// RequestLoggingConfig controls the access log. Paths starting with one of
// ExcludedPathPrefixes are not logged.
type RequestLoggingConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	LogStart             bool     `mapstructure:"log_start"`
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes"`
}

type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Backend           string `mapstructure:"backend"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	Burst             int    `mapstructure:"burst"`
	// TrustForwardedHeaders keys clients by X-Forwarded-For. Only safe behind
	// a proxy that overwrites the header.
	TrustForwardedHeaders bool                 `mapstructure:"trust_forwarded_headers"`
	Redis                 RateLimitRedisConfig `mapstructure:"redis"`
}

// RateLimitRedisConfig is only read when the backend is redis. The URL may
// carry a password, so it is redacted.
type RateLimitRedisConfig struct {
	URL              string        `mapstructure:"url" redact:"true"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Window           time.Duration `mapstructure:"window"`
	Prefix           string        `mapstructure:"prefix"`
}

// DefaultConfig serves HelloWorldTable in us-west-2 on :8080, with management
// on :9090 and rate limiting off.
func DefaultConfig() *Config {
	cfg := &Config{RouterType: RouterTypeGin}
	cfg.Service = ServiceConfig{Name: "itemservice", Environment: "production"}
	cfg.HTTP = HTTPConfig{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    2 * time.Minute,
		MaxRequestSize: 1 << 20,
		Compression: CompressionConfig{
			Enabled:     true,
			Brotli:      true,
			Gzip:        true,
			GzipLevel:   -1,
			BrotliLevel: 4,
			MinSize:     256,
		},
	}
	cfg.Management = ManagementConfig{
		Enabled:      true,
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	cfg.DynamoDB = DynamoDBConfig{
		Table:            "HelloWorldTable",
		Region:           "us-west-2",
		KeyAttribute:     "ID",
		OperationTimeout: 5 * time.Second,
	}
	cfg.Observability = ObservabilityConfig{
		LogLevel:          "info",
		LogFormat:         "json",
		TracingSampleRate: 0.1,
		RequestLogging:    RequestLoggingConfig{Enabled: true},
	}
	cfg.RateLimit = RateLimitConfig{
		Backend:           RateLimitBackendMemory,
		RequestsPerSecond: 100,
		Burst:             200,
		Redis: RateLimitRedisConfig{
			MaxConns:         10,
			OperationTimeout: 500 * time.Millisecond,
			Window:           time.Second,
			Prefix:           "itemservice:ratelimit",
		},
	}
	return cfg
}
