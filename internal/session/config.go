package session

import "time"

// Default configuration values.
const (
	// DefaultAddr is the relay address the desktop client has always used.
	DefaultAddr = "127.0.0.1:3002"

	defaultDialTimeout    = 5 * time.Second
	defaultSendBuffer     = 64
	defaultReadBufferSize = 4096
)

// Config describes the single connection a Session owns.
type Config struct {
	// Addr is the host:port of the relay.
	Addr string
	// DialTimeout bounds connection establishment only. An established session has
	// no read or write deadlines.
	DialTimeout time.Duration
	// SendBuffer is the number of encoded frames Send may queue ahead of the writer.
	SendBuffer int
	// ReadBufferSize is the size of each socket read handed to the decoder.
	ReadBufferSize int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		DialTimeout:    defaultDialTimeout,
		SendBuffer:     defaultSendBuffer,
		ReadBufferSize: defaultReadBufferSize,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	return c
}
