// Package tcp provides the relay's TCP transport.
package tcp

import (
	"context"
	"net"
	"time"
)

// defaultReadSize is the largest chunk a single Read returns.
const defaultReadSize = 4096

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn net.Conn
	buf  []byte
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return NewConnSize(conn, defaultReadSize)
}

// NewConnSize wraps a net.Conn, reading at most size bytes per Read.
func NewConnSize(conn net.Conn, size int) *Conn {
	if size <= 0 {
		size = defaultReadSize
	}
	return &Conn{conn: conn, buf: make([]byte, size)}
}

// Read implements chat.Conn.
// It returns whatever bytes the socket has, which may be part of a frame or
// several frames. The slice is only valid until the next Read.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	c.applyDeadline(ctx, c.conn.SetReadDeadline)
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		return c.buf[:n], nil
	}
	return nil, err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.applyDeadline(ctx, c.conn.SetWriteDeadline)
	_, err := c.conn.Write(data)
	return err
}

// applyDeadline mirrors a context deadline onto the socket. A context without
// one clears any previous deadline.
func (c *Conn) applyDeadline(ctx context.Context, set func(time.Time) error) {
	if ctx == nil {
		return
	}
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
