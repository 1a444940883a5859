// Package server runs the public item API and the management endpoints as
// separate HTTP listeners sharing one lifecycle.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// DefaultShutdownTimeout is used when Config.ShutdownTimeout is unset.
const DefaultShutdownTimeout = 30 * time.Second

// Config describes one listener. Port 0 picks an ephemeral port, reported by Addr.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TLSConfig switches the listener to HTTPS when non-nil.
	TLSConfig *tls.Config
}

func (c Config) httpServer(h http.Handler) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(c.Port)),
		Handler:      h,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  c.IdleTimeout,
		TLSConfig:    c.TLSConfig,
	}
}

// Server owns one listener and the router behind it.
type Server struct {
	config Config
	router router.Router
	log    logger.Logger

	mu   sync.RWMutex
	srv  *http.Server
	addr net.Addr
}

func NewServer(cfg Config, r router.Router, log logger.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{config: cfg, router: r, log: log}
}

// Start binds the port and blocks. Cancelling ctx drains in-flight requests
// and returns the result of Shutdown.
func (s *Server) Start(ctx context.Context) error {
	srv := s.config.httpServer(s.router)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.mu.Lock()
	s.srv, s.addr = srv, ln.Addr()
	s.mu.Unlock()

	tlsEnabled := s.config.TLSConfig != nil
	s.log.Info("starting server", "addr", ln.Addr().String(), "tls_enabled", tlsEnabled)

	failed := make(chan error, 1)
	go func() {
		if err := serve(srv, ln, tlsEnabled); !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func serve(srv *http.Server, ln net.Listener, tlsEnabled bool) error {
	if tlsEnabled {
		// Certificates come from srv.TLSConfig.
		return srv.ServeTLS(ln, "", "")
	}
	return srv.Serve(ln)
}

// Addr is nil until Start has bound the listener.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Shutdown stops accepting connections and waits up to Config.ShutdownTimeout
// for active requests. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv, addr := s.srv, s.addr
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down server", "addr", addr.String())
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server shutdown complete", "addr", addr.String())
	return nil
}

func (s *Server) Router() router.Router {
	return s.router
}
