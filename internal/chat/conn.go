// Package chat provides the relay's client registry and frame fan-out, shared by
// every transport that feeds it.
package chat

import "context"

// Conn abstracts a bidirectional byte connection.
// This interface isolates transport details from relay logic.
type Conn interface {
	// Read returns the next chunk of bytes, with no regard for frame boundaries.
	// Returns io.EOF when the connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends data as-is.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
