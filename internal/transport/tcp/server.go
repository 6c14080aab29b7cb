package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/hubify/internal/chat"
	"github.com/omochice/hubify/internal/logging"
)

const defaultClientBuffer = 64

// Server handles TCP connections and delegates to Hub.
type Server struct {
	address      string
	listener     net.Listener
	hub          *chat.Hub
	logger       zerolog.Logger
	clientBuffer int

	// mu orders client registration against Stop.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClientBuffer sets how many frames may wait for each client before the
// hub starts dropping them.
func WithClientBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.clientBuffer = n
		}
	}
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address:      address,
		hub:          hub,
		logger:       logging.Package("tcp"),
		clientBuffer: defaultClientBuffer,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the server's address. Start calls it when needed; calling it
// first makes Addr available before the accept loop runs.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	return nil
}

// Start accepts TCP connections until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.Info().Str(logging.ADDR, s.listener.Addr().String()).Msg("TCP server started")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn().Err(err).Msg("failed to accept TCP connection")
			continue
		}

		client := &chat.Client{
			Conn:     NewConn(conn),
			Outgoing: make(chan []byte, s.clientBuffer),
		}

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.hub.Register(client)
		s.wg.Add(2)
		s.mu.Unlock()

		go s.handleClient(client, conn)
		go s.writeLoop(client)
	}
}

// Stop closes the listener and every client connection, then waits for the
// client goroutines to exit.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	// Any registration that saw a live ctx has finished its wg.Add by now.
	s.mu.Lock()
	s.mu.Unlock()
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleClient(client *chat.Client, conn net.Conn) {
	defer s.wg.Done()
	defer close(client.Outgoing)
	defer conn.Close()

	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	if err := s.hub.HandleClient(s.ctx, client); err != nil && s.ctx.Err() == nil {
		s.logger.Info().Err(err).Str(logging.REMOTE, client.Conn.RemoteAddr()).Msg("client connection ended")
	}
}

func (s *Server) writeLoop(client *chat.Client) {
	defer s.wg.Done()
	for data := range client.Outgoing {
		if err := client.Conn.Write(s.ctx, data); err != nil {
			s.logger.Debug().Err(err).Str(logging.REMOTE, client.Conn.RemoteAddr()).Msg("failed to write to client")
			// Keep draining so the hub never blocks on this client.
			for range client.Outgoing {
			}
			return
		}
	}
}
