// Package bridge connects a user interface to a transport session.
//
// Decoded payloads arrive on Inbound as text, in the order the relay sent them.
// Text from the UI goes out through Send, which frames and queues it on the
// attached session. The bridge holds no connection state of its own; the
// session is handed to it explicitly with Attach.
package bridge

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/hubify/internal/logging"
)

// Errors returned by Send.
var (
	ErrNotAttached = errors.New("bridge not attached to a session")
	ErrClosed      = errors.New("bridge closed")
)

const defaultInboundBuffer = 16

// Sender is the outbound half of a session.
type Sender interface {
	Send(payload []byte) error
}

// Bridge relays between one session and the UI.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender

	inbound   chan string
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithInboundBuffer sets how many messages may wait for the UI before
// HandlePayload blocks.
func WithInboundBuffer(n int) Option {
	return func(b *Bridge) {
		if n >= 0 {
			b.inbound = make(chan string, n)
		}
	}
}

// New creates a Bridge with no session attached.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		inbound: make(chan string, defaultInboundBuffer),
		done:    make(chan struct{}),
		logger:  logging.Package("bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach sets the session that Send writes to.
func (b *Bridge) Attach(sender Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = sender
}

// HandlePayload delivers a decoded payload to the UI. It blocks until the UI
// takes it or the bridge is closed, which keeps inbound messages in order.
func (b *Bridge) HandlePayload(payload []byte) {
	select {
	case <-b.done:
		return
	default:
	}

	text := string(payload)
	select {
	case b.inbound <- text:
	case <-b.done:
		b.logger.Debug().Int(logging.SIZE, len(payload)).Msg("bridge closed, message discarded")
	}
}

// Inbound returns the channel of messages received from the relay.
func (b *Bridge) Inbound() <-chan string {
	return b.inbound
}

// Done is closed when the bridge is closed.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Send frames text and queues it on the attached session. Text that is empty
// or only whitespace is ignored. Failures are logged and returned; nothing is
// retried.
func (b *Bridge) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	b.mu.RLock()
	sender := b.sender
	b.mu.RUnlock()

	if sender == nil {
		return ErrNotAttached
	}

	if err := sender.Send([]byte(text)); err != nil {
		b.logger.Warn().Err(err).Int(logging.SIZE, len(text)).Msg("failed to send message")
		return err
	}
	return nil
}

// Close releases anything blocked in HandlePayload. Safe to call multiple times.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
