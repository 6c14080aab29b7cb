package chat_test

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/hubify/internal/chat"
)

// mockConn feeds queued chunks to HandleClient. Closing readCh ends the stream
// with io.EOF.
type mockConn struct {
	readCh     chan []byte
	readErr    error
	remoteAddr string

	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	}
}

func (m *mockConn) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, append([]byte(nil), data...))
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

var _ chat.Conn = (*mockConn)(nil)
