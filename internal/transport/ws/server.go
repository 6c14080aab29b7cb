package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/omochice/hubify/internal/logging"
)

// Path is where the UI endpoint is mounted.
const Path = "/ws"

// writeTimeout bounds a single push to a UI socket.
const writeTimeout = 5 * time.Second

// Bridge is the part of bridge.Bridge the UI endpoint uses.
type Bridge interface {
	Send(text string) error
	Inbound() <-chan string
}

// Server handles UI WebSocket connections and relays them through a Bridge.
type Server struct {
	address  string
	listener net.Listener
	server   *http.Server
	bridge   Bridge
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*Conn]bool

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

// New creates a UI WebSocket server relaying through b.
func New(address string, b Bridge, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address: address,
		bridge:  b,
		logger:  logging.Package("ws"),
		clients: make(map[*Conn]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	s.server = &http.Server{Handler: mux}
	return s
}

// Listen binds the server's address.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener
	return nil
}

// Start serves UI connections until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.Info().Str(logging.ADDR, s.listener.Addr().String()).Msg("WebSocket server started")

	s.wg.Add(1)
	go s.fanout()

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server and closes every UI connection.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.server.Shutdown(context.Background())
	}

	for _, c := range s.snapshot() {
		c.Close()
	}

	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected UI sockets.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn().Err(err).Str(logging.REMOTE, r.RemoteAddr).Msg("failed to upgrade connection")
		return
	}

	client := NewConnWithAddr(conn, r.RemoteAddr)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		client.Close()
		return
	}
	s.clients[client] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.readLoop(client)
}

// readLoop forwards UI messages to the bridge until the socket closes.
func (s *Server) readLoop(client *Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		client.Close()
	}()

	logger := s.logger.With().Str(logging.REMOTE, client.RemoteAddr()).Logger()
	logger.Info().Msg("UI connected")

	for {
		data, err := client.Read(s.ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				logger.Debug().Err(err).Msg("UI read error")
			}
			logger.Info().Msg("UI disconnected")
			return
		}
		// The bridge logs send failures; the UI gets no error frame.
		_ = s.bridge.Send(string(data))
	}
}

// fanout pushes every inbound message to all connected UI sockets.
func (s *Server) fanout() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case text := <-s.bridge.Inbound():
			s.broadcast([]byte(text))
		}
	}
}

func (s *Server) broadcast(data []byte) {
	for _, client := range s.snapshot() {
		ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
		err := client.Write(ctx, data)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str(logging.REMOTE, client.RemoteAddr()).Msg("failed to write to UI")
		}
	}
}

// snapshot copies the client set so socket I/O happens outside s.mu.
func (s *Server) snapshot() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]*Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}
