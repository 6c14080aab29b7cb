package chat

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/metrics"
	"github.com/omochice/hubify/pkg/protocol"
)

// Client represents a connected client with transport-agnostic connection.
type Client struct {
	Conn Conn
	// Token is the session token the client announced on connect.
	Token    [protocol.TokenLen]byte
	Outgoing chan []byte
}

// TokenString returns the client's session token in hex.
func (c *Client) TokenString() string {
	return hex.EncodeToString(c.Token[:])
}

// Hub manages all connected clients and relays every frame a client sends to
// all the others.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  zerolog.Logger
	metrics *metrics.Hub
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger zerolog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics sets the collectors the hub updates.
func WithMetrics(m *metrics.Hub) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a new Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*Client]bool),
		logger:  logging.Package("chat"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewHub(nil)
	}
	return h
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.metrics.Clients.Set(float64(len(h.clients)))
}

// Unregister removes a client from the hub. Once it returns, Broadcast no
// longer touches the client's Outgoing channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
	h.metrics.Clients.Set(float64(len(h.clients)))
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues frame for every client except sender. A client whose queue
// is full misses the frame.
func (h *Hub) Broadcast(frame []byte, sender *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client == sender {
			continue
		}
		select {
		case client.Outgoing <- frame:
			h.metrics.FramesRelayed.Inc()
		default:
			h.metrics.FramesDropped.Inc()
			h.logger.Warn().Str(logging.REMOTE, client.Conn.RemoteAddr()).Msg("client queue full, frame dropped")
		}
	}
}

// HandleClient reads from client until its connection ends, then unregisters it.
// The first protocol.TokenLen bytes are the client's session token; everything
// after is a frame stream whose payloads are relayed through Broadcast.
// A clean close by the client returns nil.
func (h *Hub) HandleClient(ctx context.Context, client *Client) error {
	defer h.Unregister(client)

	logger := h.logger.With().Str(logging.REMOTE, client.Conn.RemoteAddr()).Logger()
	decoder := protocol.NewDecoder(func(payload []byte) {
		logger.Debug().Int(logging.SIZE, len(payload)).Msg("frame received")
		h.Broadcast(protocol.Encode(payload), client)
	})

	var pending []byte
	announced := false
	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Str(logging.TOKEN, client.TokenString()).Msg("client left")
				return nil
			}
			logger.Debug().Err(err).Msg("read error")
			return err
		}

		if !announced {
			pending = append(pending, data...)
			if len(pending) < protocol.TokenLen {
				continue
			}
			copy(client.Token[:], pending[:protocol.TokenLen])
			data = pending[protocol.TokenLen:]
			pending = nil
			announced = true
			logger.Info().Str(logging.TOKEN, client.TokenString()).Int(logging.CLIENTS, h.ClientCount()).Msg("client joined")
		}

		decoder.Push(data)
	}
}
