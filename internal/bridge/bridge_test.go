package bridge_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omochice/hubify/internal/bridge"
	"github.com/omochice/hubify/internal/session"
	"github.com/omochice/hubify/internal/testutil/testlog"
)

// mockSender records payloads passed to Send.
type mockSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockSender) Send(payload []byte) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, string(payload))
	return nil
}

func (m *mockSender) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Compile-time checks for the session wiring.
var (
	_ session.Handler = (*bridge.Bridge)(nil)
	_ bridge.Sender   = (*session.Session)(nil)
)

func TestBridge_SendNotAttached(t *testing.T) {
	b := bridge.New(bridge.WithLogger(testlog.New(t)))

	if err := b.Send("hello"); !errors.Is(err, bridge.ErrNotAttached) {
		t.Errorf("Send() error = %v, want %v", err, bridge.ErrNotAttached)
	}
}

func TestBridge_Send(t *testing.T) {
	b := bridge.New(bridge.WithLogger(testlog.New(t)))
	sender := &mockSender{}
	b.Attach(sender)

	for _, text := range []string{"hello", "", "   ", " padded "} {
		if err := b.Send(text); err != nil {
			t.Errorf("Send(%q) error = %v", text, err)
		}
	}

	got := sender.Sent()
	want := []string{"hello", " padded "}
	if len(got) != len(want) {
		t.Fatalf("sent = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBridge_SendPropagatesSessionError(t *testing.T) {
	b := bridge.New(bridge.WithLogger(testlog.New(t)))
	b.Attach(&mockSender{err: session.ErrSessionClosed})

	if err := b.Send("hello"); !errors.Is(err, session.ErrSessionClosed) {
		t.Errorf("Send() error = %v, want %v", err, session.ErrSessionClosed)
	}
}

func TestBridge_SendAfterClose(t *testing.T) {
	b := bridge.New(bridge.WithLogger(testlog.New(t)))
	b.Attach(&mockSender{})
	b.Close()
	b.Close()

	if err := b.Send("hello"); !errors.Is(err, bridge.ErrClosed) {
		t.Errorf("Send() error = %v, want %v", err, bridge.ErrClosed)
	}
}

func TestBridge_HandlePayloadInOrder(t *testing.T) {
	b := bridge.New(bridge.WithLogger(testlog.New(t)), bridge.WithInboundBuffer(0))

	go func() {
		for _, p := range []string{"a", "bb", "ccc"} {
			b.HandlePayload([]byte(p))
		}
	}()

	for _, want := range []string{"a", "bb", "ccc"} {
		select {
		case got := <-b.Inbound():
			if got != want {
				t.Errorf("Inbound() = %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for %q", want)
		}
	}
}

func TestBridge_CloseUnblocksHandlePayload(t *testing.T) {
	b := bridge.New(bridge.WithLogger(testlog.New(t)), bridge.WithInboundBuffer(0))

	done := make(chan struct{})
	go func() {
		b.HandlePayload([]byte("nobody listening"))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandlePayload still blocked after Close")
	}
}
