package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/config"
	"governor-hq/ganymede/pkg/rollout"
	"governor-hq/ganymede/pkg/telemetry/health"
	"governor-hq/ganymede/pkg/telemetry/metrics"
)

// Server hosts the engine's HTTP API.
type Server struct {
	config     *config.ServerConfig
	controller *rollout.Controller
	log        *audit.Log
	health     *health.Checker
	metrics    *metrics.Metrics
	logger     *slog.Logger

	metricsPath string

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server over the given controller and audit log.
func New(cfg *config.Config, controller *rollout.Controller, log *audit.Log, checker *health.Checker, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if controller == nil {
		return nil, fmt.Errorf("controller cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("audit log cannot be nil")
	}
	if checker == nil {
		checker = health.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:       &cfg.Server,
		controller:   controller,
		log:          log,
		health:       checker,
		metrics:      m,
		metricsPath:  cfg.Telemetry.Metrics.Path,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start starts the HTTP server and blocks until shutdown, either via context
// cancellation, SIGINT/SIGTERM, or RequestShutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// RequestShutdown asks a running Start to shut down gracefully.
func (s *Server) RequestShutdown() {
	select {
	case s.shutdownChan <- struct{}{}:
	default:
	}
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully assembled HTTP handler, including middleware.
// Exposed for tests driving the API with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/events", s.handleEmitEvent)
	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)

	mux.HandleFunc("POST /v1/entities", s.handleRegisterEntity)
	mux.HandleFunc("GET /v1/entities", s.handleListEntities)
	mux.HandleFunc("GET /v1/entities/{id}", s.handleGetEntity)
	mux.HandleFunc("POST /v1/entities/{id}/transition", s.handleTransitionEntity)
	mux.HandleFunc("GET /v1/entities/{id}/blast-preview", s.handlePreviewBlast)

	mux.HandleFunc("POST /v1/policies", s.handleRegisterPolicy)
	mux.HandleFunc("GET /v1/policies", s.handleListPolicies)
	mux.HandleFunc("GET /v1/policies/{id}", s.handleGetPolicy)
	mux.HandleFunc("POST /v1/policies/{id}/kill", s.handleKillPolicy)
	mux.HandleFunc("POST /v1/policies/{id}/force-promote", s.handleForcePromote)

	mux.HandleFunc("GET /v1/deferred", s.handleListDeferred)
	mux.HandleFunc("POST /v1/deferred/{id}/approve", s.handleApproveDeferred)
	mux.HandleFunc("POST /v1/deferred/{id}/dismiss", s.handleDismissDeferred)

	mux.HandleFunc("GET /v1/audit", s.handleAuditRange)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET "+s.metricsPath, s.metrics.Handler())

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)

	return handler
}
