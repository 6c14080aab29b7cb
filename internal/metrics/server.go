package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/omochice/hubify/internal/logging"
)

// Path is where the exposition endpoint is mounted.
const Path = "/metrics"

const shutdownTimeout = 5 * time.Second

// Mount serves g on r at Path.
func Mount(r chi.Router, g prometheus.Gatherer) {
	r.Method(http.MethodGet, Path, promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// Server exposes one registry over HTTP.
type Server struct {
	address  string
	listener net.Listener
	server   *http.Server
	logger   zerolog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server for g. Nothing is bound until Listen or Start.
func NewServer(address string, g prometheus.Gatherer, opts ...ServerOption) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	Mount(r, g)

	s := &Server{
		address: address,
		server:  &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second},
		logger:  logging.Package("metrics"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the server's address.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	s.listener = ln
	return nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info().Str(logging.ADDR, s.Addr()).Msg("metrics server started")
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("metrics server shutdown")
	}
	// Closes a listener Start never served.
	if s.listener != nil {
		s.listener.Close()
	}
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
