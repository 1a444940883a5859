package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/health"
	"github.com/nimburion/itemservice/pkg/middleware/ratelimit"
	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/observability/metrics"
	"github.com/nimburion/itemservice/pkg/observability/tracing"
	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/server/router/factory"
	"github.com/nimburion/itemservice/pkg/version"
)

// DefaultHookTimeout is the per-hook deadline on shutdown when Options.HookTimeout is unset.
const DefaultHookTimeout = 10 * time.Second

const tracerFlushTimeout = 10 * time.Second

// Hook is a named step run around serving, e.g. closing the store adapter.
type Hook struct {
	Name string
	Run  func(context.Context) error
}

func (h Hook) String() string {
	if name := strings.TrimSpace(h.Name); name != "" {
		return name
	}
	return "unnamed"
}

// Options wires the application into the two listeners.
type Options struct {
	// Config and Logger are filled with defaults by Build when nil.
	Config *config.Config
	Logger logger.Logger

	// PublicRouter and ManagementRouter are created from Config.RouterType when nil.
	PublicRouter     router.Router
	ManagementRouter router.Router

	Readiness *health.Registry
	Metrics   *metrics.Registry

	// RateLimiter throttles the public API when non-nil.
	RateLimiter ratelimit.RateLimiter

	// Routes registers the application endpoints behind the public middleware.
	Routes func(r router.Router)

	OnStart     []Hook
	OnStop      []Hook
	HookTimeout time.Duration
}

func (o *Options) serviceName() string {
	if name := strings.TrimSpace(o.Config.Service.Name); name != "" {
		return name
	}
	return version.Unknown
}

func (o *Options) tracingConfig(info version.Info) tracing.ProviderConfig {
	obs := o.Config.Observability
	cfg := tracing.ProviderConfig{
		ServiceName:    strings.TrimSpace(obs.ServiceName),
		ServiceVersion: info.Version,
		Environment:    strings.TrimSpace(o.Config.Service.Environment),
		Endpoint:       obs.TracingEndpoint,
		SampleRate:     obs.TracingSampleRate,
		Enabled:        obs.TracingEnabled,
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = info.Service
	}
	if cfg.Environment == "" {
		cfg.Environment = version.Unknown
	}
	return cfg
}

func (o *Options) router(r *router.Router, role string) error {
	if *r != nil {
		return nil
	}
	created, err := factory.NewRouter(o.Config.RouterType)
	if err != nil {
		return fmt.Errorf("create %s router: %w", role, err)
	}
	*r = created
	return nil
}

// Servers is the public API listener plus the optional management listener.
type Servers struct {
	Public     *PublicAPIServer
	Management *ManagementServer

	opts Options
}

// Build installs middleware and routes on both routers. Nothing listens until Run.
func Build(opts Options) (*Servers, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		log, err := logger.NewZapLogger(logger.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("create default logger: %w", err)
		}
		opts.Logger = log
	}
	cfg := opts.Config

	if err := opts.router(&opts.PublicRouter, "public"); err != nil {
		return nil, err
	}
	s := &Servers{opts: opts}
	s.Public = NewPublicAPIServer(cfg.HTTP, opts.PublicRouter, opts.Logger, PublicOptions{
		Observability: cfg.Observability,
		RateLimiter:   opts.RateLimiter,

		TrustForwardedHeaders: cfg.RateLimit.TrustForwardedHeaders,
	})
	if opts.Routes != nil {
		opts.Routes(opts.PublicRouter)
	}

	if !cfg.Management.Enabled {
		return s, nil
	}
	if err := s.opts.router(&s.opts.ManagementRouter, "management"); err != nil {
		return nil, err
	}
	mgmt, err := NewManagementServer(cfg.Management, s.opts.ManagementRouter, opts.Logger,
		opts.Readiness, opts.Metrics, version.Current(opts.serviceName()))
	if err != nil {
		return nil, fmt.Errorf("create management server: %w", err)
	}
	s.Management = mgmt
	return s, nil
}

func (s *Servers) listeners() []*Server {
	list := []*Server{s.Public.Server}
	if s.Management != nil {
		list = append(list, s.Management.Server)
	}
	return list
}

// Run starts tracing and the OnStart hooks, then serves until ctx ends or a
// listener fails, which stops the other one. OnStop hooks run whenever the
// OnStart hooks succeeded.
func (s *Servers) Run(ctx context.Context) error {
	if s == nil || s.Public == nil {
		return errors.New("public server is required")
	}
	log := s.opts.Logger

	info := version.Current(s.opts.serviceName())
	log.Info("application version metadata", info.Fields()...)

	traces, err := tracing.Setup(ctx, s.opts.tracingConfig(info))
	if err != nil {
		return fmt.Errorf("initialize tracing provider: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracerFlushTimeout)
		defer cancel()
		if err := traces.Shutdown(flushCtx); err != nil {
			log.Error("failed to shutdown tracing provider", "error", err)
		}
	}()

	if err := startHooks(ctx, s.opts.OnStart, log); err != nil {
		return err
	}
	defer func() {
		if err := stopHooks(s.opts.OnStop, s.opts.HookTimeout, log); err != nil {
			log.Error("shutdown hooks completed with errors", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range s.listeners() {
		g.Go(func() error { return l.Start(gctx) })
	}
	return g.Wait()
}

// RunUntilSignal is Run cancelled by the given signals, SIGINT and SIGTERM by default.
func (s *Servers) RunUntilSignal(signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()
	return s.Run(ctx)
}

// startHooks stops at the first failure.
func startHooks(ctx context.Context, hooks []Hook, log logger.Logger) error {
	for _, h := range hooks {
		if h.Run == nil {
			continue
		}
		log.Info("startup hook start", "hook", h.String())
		if err := h.Run(ctx); err != nil {
			log.Error("startup hook failed", "hook", h.String(), "error", err)
			return fmt.Errorf("startup hook %q failed: %w", h, err)
		}
		log.Info("startup hook complete", "hook", h.String())
	}
	return nil
}

// stopHooks runs every hook under its own deadline and joins the failures.
func stopHooks(hooks []Hook, timeout time.Duration, log logger.Logger) error {
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}

	var errs []error
	for _, h := range hooks {
		if h.Run == nil {
			continue
		}
		log.Info("shutdown hook start", "hook", h.String())
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := h.Run(ctx)
		cancel()
		if err != nil {
			log.Error("shutdown hook failed", "hook", h.String(), "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", h, err))
			continue
		}
		log.Info("shutdown hook complete", "hook", h.String())
	}
	return errors.Join(errs...)
}
