package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/health"
	"github.com/nimburion/itemservice/pkg/middleware/logging"
	"github.com/nimburion/itemservice/pkg/middleware/recovery"
	"github.com/nimburion/itemservice/pkg/middleware/requestid"
	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/observability/metrics"
	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/version"
)

const managementIdleTimeout = time.Minute

// ManagementServer exposes operational endpoints next to the item API:
//
//	GET /health   liveness, 200 whenever the process can answer
//	GET /ready    dependency checks, 503 once any of them is unhealthy
//	GET /metrics  Prometheus exposition
//	GET /version  build metadata
type ManagementServer struct {
	*Server
	readiness  *health.Registry
	exposition *metrics.Registry
	build      version.Info
}

// NewManagementServer installs the management routes on r. Nil registries are
// replaced with empty ones. With cfg.MTLSEnabled the listener requires client
// certificates signed by cfg.TLSCAFile.
func NewManagementServer(
	cfg config.ManagementConfig,
	r router.Router,
	log logger.Logger,
	readiness *health.Registry,
	exposition *metrics.Registry,
	build version.Info,
) (*ManagementServer, error) {
	listener := Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  managementIdleTimeout,
	}
	if cfg.MTLSEnabled {
		files := MutualTLSFiles{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, CAFile: cfg.TLSCAFile}
		tlsConfig, err := files.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load management mTLS config: %w", err)
		}
		listener.TLSConfig = tlsConfig
		log.Info("management mTLS enabled", "ca_file", cfg.TLSCAFile)
	}

	if readiness == nil {
		readiness = health.NewRegistry()
	}
	if exposition == nil {
		exposition = metrics.NewRegistry()
	}

	r.Use(recovery.Recovery(log), requestid.RequestID(), logging.Logging(log))

	s := &ManagementServer{
		Server:     NewServer(listener, r, log),
		readiness:  readiness,
		exposition: exposition,
		build:      build,
	}
	r.GET("/health", s.live)
	r.GET("/ready", s.ready)
	r.GET("/metrics", s.scrape)
	r.GET("/version", s.version)
	return s, nil
}

func (s *ManagementServer) live(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": string(health.StatusHealthy)})
}

func (s *ManagementServer) ready(c router.Context) error {
	report := s.readiness.Check(c.Request().Context())
	code := http.StatusOK
	if !report.Ready() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}

func (s *ManagementServer) scrape(c router.Context) error {
	s.exposition.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *ManagementServer) version(c router.Context) error {
	return c.JSON(http.StatusOK, s.build)
}
