// Package session owns the client's connection to the relay.
//
// A Session dials once, announces itself with a random 4-byte token, and then
// moves frames in both directions: bytes read from the socket are fed to a
// protocol.Decoder whose payloads go to a Handler, and payloads passed to Send
// are encoded and written in order. There is no reconnect. Once the connection
// fails or the peer closes it, the session is inert and Send reports
// ErrSessionClosed.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/metrics"
	"github.com/omochice/hubify/pkg/protocol"
)

// Errors returned by session operations.
var (
	// ErrSessionClosed is returned when operating on a session whose connection is gone.
	ErrSessionClosed = errors.New("session closed")
	// ErrBufferFull is returned by Send when the outgoing queue cannot take another frame.
	// The frame is not queued and the caller is not blocked.
	ErrBufferFull = errors.New("send buffer full")
	// ErrInvalidHandler is returned when Dial is called without a handler.
	ErrInvalidHandler = errors.New("invalid payload handler")
)

// Handler receives decoded payloads in the order the peer sent them.
// HandlePayload runs on the session's read goroutine; while it blocks, no
// further bytes are read.
type Handler interface {
	HandlePayload(payload []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(payload []byte)

// HandlePayload implements Handler.
func (f HandlerFunc) HandlePayload(payload []byte) {
	f(payload)
}

// Session is one client connection to the relay.
type Session struct {
	cfg     Config
	conn    net.Conn
	token   [protocol.TokenLen]byte
	decoder *protocol.Decoder
	handler Handler
	logger  zerolog.Logger
	metrics *metrics.Session

	sendMsg chan []byte
	closed  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Dial connects to cfg.Addr and performs the session handshake. The returned
// session does not move frames until Run is called, but Send may queue them.
func Dial(ctx context.Context, cfg Config, handler Handler, opt ...Option) (*Session, error) {
	if handler == nil {
		return nil, ErrInvalidHandler
	}
	cfg = cfg.withDefaults()
	opts := buildOptions(opt)
	logger := opts.logger.With().Str(logging.ADDR, cfg.Addr).Logger()

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		opts.metrics.TransportErrors.Inc()
		logger.Error().Err(err).Msg("connect failed")
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		conn:    conn,
		handler: handler,
		logger:  logger,
		metrics: opts.metrics,
		sendMsg: make(chan []byte, cfg.SendBuffer),
	}
	s.decoder = protocol.NewDecoder(s.dispatch)

	if err := s.handshake(opts.tokenSource); err != nil {
		s.metrics.TransportErrors.Inc()
		logger.Error().Err(err).Msg("handshake failed")
		conn.Close()
		return nil, err
	}

	s.logger.Info().Str(logging.TOKEN, hex.EncodeToString(s.token[:])).Msg("connected to server")
	return s, nil
}

// handshake writes the session token. It must be the first thing on the wire.
func (s *Session) handshake(src io.Reader) error {
	if _, err := io.ReadFull(src, s.token[:]); err != nil {
		return fmt.Errorf("failed to generate session token: %w", err)
	}
	if _, err := s.conn.Write(s.token[:]); err != nil {
		return fmt.Errorf("failed to send session token: %w", err)
	}
	s.metrics.BytesSent.Add(protocol.TokenLen)
	return nil
}

// Run moves frames until the connection fails, the peer closes it, Close is
// called, or ctx is canceled. The connection is closed when Run returns. A peer
// close or cancellation returns nil; transport failures are logged and returned.
func (s *Session) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	group, child := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.readLoop(child)
	})
	group.Go(func() error {
		return s.writeLoop(child)
	})
	group.Go(func() error {
		// Unblocks the pending Read once either loop exits or ctx is canceled.
		<-child.Done()
		s.closeConn()
		return nil
	})

	err := group.Wait()
	s.closeConn()

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		s.logger.Info().Msg("session closed")
		return nil
	}
	s.logger.Error().Err(err).Msg("session closed with error")
	return err
}

// Send encodes payload as one frame and queues it for the writer without blocking.
// Frames are written in the order Send accepted them.
func (s *Session) Send(payload []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	frame := protocol.Encode(payload)
	select {
	case s.sendMsg <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops Run and closes the connection. Safe to call multiple times.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return s.conn.Close()
}

// IsClosed reports whether the session has become inert.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Token returns the handshake token sent on connect.
func (s *Session) Token() [protocol.TokenLen]byte {
	return s.token
}

// LocalAddr returns the local end of the connection.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the relay's address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// dispatch is the decoder callback.
func (s *Session) dispatch(payload []byte) {
	s.metrics.FramesReceived.Inc()
	s.logger.Debug().Int(logging.SIZE, len(payload)).Msg("frame received")
	s.handler.HandlePayload(payload)
}

// readLoop feeds socket reads to the decoder. The decoder is touched by no other goroutine.
func (s *Session) readLoop(ctx context.Context) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.metrics.BytesReceived.Add(float64(n))
			s.decoder.Push(buf[:n])
			s.metrics.DecoderBuffered.Set(float64(s.decoder.Buffered()))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info().Int(logging.SIZE, s.decoder.Buffered()).Msg("server closed connection")
				return io.EOF
			}
			s.metrics.TransportErrors.Inc()
			return fmt.Errorf("failed to read from server: %w", err)
		}
	}
}

// writeLoop writes queued frames one at a time.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-s.sendMsg:
			if _, err := s.conn.Write(frame); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.metrics.TransportErrors.Inc()
				return fmt.Errorf("failed to write to server: %w", err)
			}
			s.metrics.FramesSent.Inc()
			s.metrics.BytesSent.Add(float64(len(frame)))
		}
	}
}

// closeConn marks the session inert and closes the socket.
func (s *Session) closeConn() {
	s.closed.Store(true)
	s.conn.Close()
}
