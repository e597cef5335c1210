package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/jobcfg"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/metrics"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/server/endpoints"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// Server is the main Lectern HTTP server. It owns the document store, the
// job scheduler, and the pipeline runner, and exposes them through the
// endpoint registry.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	store      *store.Store
	scheduler  *jobs.Scheduler
	metrics    *metrics.Registry
	configMgr  *config.Manager
	logger     *slog.Logger
	workers    int

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	runner   *pipeline.Runner
	services *svcctx.Services
	running  bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to. Empty falls back to the config
	// file value, then 127.0.0.1.
	Host string
	// Port is the port to listen on. Empty falls back to the config
	// file value, then 8080.
	Port string
	// Home is the lectern home directory. Required.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Optional; defaults are used when absent.
	ConfigManager *config.Manager
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = strconv.Itoa(appCfg.Server.Port)
	}

	s := &Server{
		home:      cfg.Home,
		store:     store.New(cfg.Home),
		metrics:   metrics.NewRegistry(),
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
		workers:   appCfg.Pipeline.Workers,
	}

	s.scheduler = jobs.NewScheduler(jobs.SchedulerConfig{
		Logger:    cfg.Logger,
		QueueSize: appCfg.Pipeline.QueueSize,
	})

	runner, err := jobcfg.BuildRunner(appCfg, s.runnerDeps())
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline runner: %w", err)
	}
	s.runner = runner
	s.services = s.buildServices(runner)

	// Rebuild the runner when the config file changes. Jobs already in
	// flight keep the runner they started with.
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			next, err := jobcfg.BuildRunner(c, s.runnerDeps())
			if err != nil {
				cfg.Logger.Warn("config reload kept previous pipeline runner", "error", err)
				return
			}
			s.mu.Lock()
			s.runner = next
			s.services = s.buildServices(next)
			s.mu.Unlock()
			cfg.Logger.Info("pipeline runner rebuilt from config")
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: endpoints.GetSwaggerSpecPath()}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) runnerDeps() jobcfg.Deps {
	return jobcfg.Deps{
		Home:    s.home,
		Store:   s.store,
		Metrics: s.metrics,
		Logger:  s.logger,
	}
}

func (s *Server) buildServices(runner *pipeline.Runner) *svcctx.Services {
	return &svcctx.Services{
		Home:      s.home,
		Config:    s.configMgr,
		Store:     s.store,
		Runner:    runner,
		Scheduler: s.scheduler,
		Metrics:   s.metrics,
		Logger:    s.logger,
	}
}

// Start starts the server and its job workers.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	// Workers stop when Start returns, whatever the reason.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	s.scheduler.RunWorkers(workerCtx, s.workers)
	s.logger.Info("job workers started", "workers", s.workers)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Store returns the document store.
func (s *Server) Store() *store.Store {
	return s.store
}

// Scheduler returns the job scheduler.
func (s *Server) Scheduler() *jobs.Scheduler {
	return s.scheduler
}

// Runner returns the current pipeline runner.
func (s *Server) Runner() *pipeline.Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runner
}

// Handler returns the server's root HTTP handler. Used by tests to drive
// the API without binding a socket.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or scheduler aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.scheduler == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
