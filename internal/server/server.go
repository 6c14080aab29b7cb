// Package server runs the hubify relay: the TCP chat hub plus an admin HTTP
// endpoint for health checks and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/hubify/internal/chat"
	"github.com/omochice/hubify/internal/config"
	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/metrics"
	"github.com/omochice/hubify/internal/transport/tcp"
)

const shutdownTimeout = 5 * time.Second

// Server is the relay process.
type Server struct {
	cfg      config.Server
	logger   zerolog.Logger
	registry *prometheus.Registry
	started  time.Time

	hub     *chat.Hub
	tcp     *tcp.Server
	admin   *http.Server
	adminLn net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the relay and its components.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a relay. Nothing is bound until Listen or Run.
func New(cfg config.Server, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logging.Package("server"),
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.hub = chat.NewHub(
		chat.WithLogger(s.logger.With().Str(logging.PACKAGE, "chat").Logger()),
		chat.WithMetrics(metrics.NewHub(s.registry)),
	)
	s.tcp = tcp.New(cfg.Listen, s.hub,
		tcp.WithLogger(s.logger.With().Str(logging.PACKAGE, "tcp").Logger()),
		tcp.WithClientBuffer(cfg.ClientBuffer),
	)
	if cfg.AdminListen != "" {
		s.admin = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s
}

// Handler returns the admin router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	metrics.Mount(r, s.registry)
	return r
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Listen binds the relay and admin addresses.
func (s *Server) Listen() error {
	if err := s.tcp.Listen(); err != nil {
		return err
	}
	if s.admin != nil && s.adminLn == nil {
		ln, err := net.Listen("tcp", s.cfg.AdminListen)
		if err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
		s.adminLn = ln
	}
	return nil
}

// Run serves until ctx is cancelled or a listener fails, then stops every
// component.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tcp.Start()
	})

	if s.admin != nil {
		s.logger.Info().Str(logging.ADDR, s.AdminAddr()).Msg("admin server started")
		g.Go(func() error {
			if err := s.admin.Serve(s.adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.tcp.Stop()
		if s.admin != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.admin.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn().Err(err).Msg("admin server shutdown")
			}
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info().Msg("relay stopped")
	return err
}

// Addr returns the relay's listening address.
func (s *Server) Addr() string {
	return s.tcp.Addr()
}

// AdminAddr returns the admin endpoint's address, or "" when disabled or not
// yet bound.
func (s *Server) AdminAddr() string {
	if s.adminLn != nil {
		return s.adminLn.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:  "ok",
		Clients: s.ClientCount(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write health response")
	}
}
