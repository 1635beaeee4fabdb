// Package server hosts the HTTP endpoints of a long running eventify process:
// health probes, Prometheus metrics and, for mock-server, the Eventify API
// double.
//
// Routes registered by every server:
//
//	GET /health/live    liveness, never runs dependency checks
//	GET /health/ready   readiness, runs the registered health checks
//	GET /healthz        alias of /health/ready
//	GET /metrics        when Config.Metrics is set
//
// Shutdown marks readiness as failing, disables keep-alives and drains open
// connections for up to Config.ShutdownTimeout.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/eventify/internal/health"
	"github.com/felixgeelhaar/eventify/internal/log"
)

// Config holds server configuration. Zero durations take the defaults.
type Config struct {
	// Address is the listen address, e.g. ":8080" or "127.0.0.1:0".
	Address string

	// ShutdownTimeout bounds connection draining. Default 10s.
	ShutdownTimeout time.Duration

	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
	IdleTimeout  time.Duration // default 60s

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	// Logger receives lifecycle events. Nil discards them.
	Logger *log.Logger
}

// Server is an http.Server with probe and metrics routes.
type Server struct {
	httpServer      *http.Server
	router          chi.Router
	probes          *health.ProbeManager
	shutdownTimeout time.Duration
	logger          *log.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New builds a server; nothing listens until Listen or Serve.
func New(probes *health.ProbeManager, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}

	s := &Server{
		router:          chi.NewRouter(),
		probes:          probes,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger.With("component", "server"),
	}

	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)
	s.router.Get("/healthz", s.handleReadiness)
	if cfg.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Mount serves h under pattern, e.g. Mount("/", api) for the mock API.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

// Handler returns the router, for tests that use httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the configured address and returns the bound address, which
// differs from the configured one for port 0.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	addr := s.httpServer.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Serve listens if Listen was not called, serves until ctx is done and then
// shuts down gracefully. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()
	s.probes.MarkReady()
	s.logger.Info("server listening", "addr", addr.String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down", "timeout", s.shutdownTimeout)
	if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown fails readiness, disables keep-alives and drains connections for
// at most the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	// A listener bound by Listen but never served is not tracked by http.Server.
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()
	return err
}

func writeProbe(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status == health.StatusUnhealthy {
		w.WriteHeader(unhealthyStatus)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(result)
}

// Liveness answers 200 even while shutting down.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, s.probes.CheckLiveness(r.Context()), http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, s.probes.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}
