package session

import (
	"crypto/rand"
	"io"

	"github.com/rs/zerolog"

	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/metrics"
)

// options holds the optional collaborators of a Session.
type options struct {
	logger      *zerolog.Logger
	metrics     *metrics.Session
	tokenSource io.Reader
}

// Option is a function that configures a Session.
type Option func(*options)

// WithLogger sets the logger. Defaults to the global logger tagged pkg=session.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithMetrics sets the collectors the session updates. Defaults to an
// unregistered set.
func WithMetrics(m *metrics.Session) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTokenSource sets where the handshake token is read from. Defaults to
// crypto/rand.
func WithTokenSource(r io.Reader) Option {
	return func(o *options) {
		o.tokenSource = r
	}
}

func buildOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if opts.logger == nil {
		l := logging.Package("session")
		opts.logger = &l
	}
	if opts.metrics == nil {
		opts.metrics = metrics.NewSession(nil)
	}
	if opts.tokenSource == nil {
		opts.tokenSource = rand.Reader
	}
	return opts
}
