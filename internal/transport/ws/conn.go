// Package ws serves the browser UI over WebSocket.
//
// Each message a UI socket sends becomes one outbound chat message; every
// inbound chat message is pushed to all connected UI sockets as a text message.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a server-side gobwas/ws connection to chat.Conn interface.
// Reads return whole WebSocket messages.
type Conn struct {
	conn       net.Conn
	remoteAddr string
	wmu        sync.Mutex
}

// NewConn wraps an upgraded net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, remoteAddr: conn.RemoteAddr().String()}
}

// NewConnWithAddr wraps an upgraded net.Conn with the specified remote address.
func NewConnWithAddr(conn net.Conn, addr string) *Conn {
	return &Conn{conn: conn, remoteAddr: addr}
}

// Read implements chat.Conn.
// Control frames are handled internally; a close frame from the UI reports io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	setDeadline(ctx, c.conn.SetReadDeadline)
	data, _, err := wsutil.ReadClientData(c.conn)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write implements chat.Conn.
// Writes a text message to the UI.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	setDeadline(ctx, c.conn.SetWriteDeadline)
	return wsutil.WriteServerMessage(c.conn, ws.OpText, data)
}

// closeTimeout bounds the close frame write, and any write still blocked on a
// UI that stopped reading.
const closeTimeout = time.Second

// Close implements chat.Conn.
func (c *Conn) Close() error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
	c.wmu.Lock()
	_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	c.wmu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

func setDeadline(ctx context.Context, set func(time.Time) error) {
	if ctx == nil {
		return
	}
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
}
