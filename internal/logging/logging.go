// Package logging configures zerolog for hubify processes.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "HUBIFY_LOG_LEVEL"

// logger fields
const (
	PACKAGE = "pkg"
	ADDR    = "addr"
	REMOTE  = "remote"
	EVENT   = "event"
	TOKEN   = "token"
	SIZE    = "size"
	CLIENTS = "clients"
)

// Config selects the log level and output format.
type Config struct {
	Level   string
	Console bool
}

// DefaultConfig returns info-level console logging.
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// New builds a logger writing to stderr and installs it as the global zerolog logger.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	level, ok := ParseLevel(os.Getenv(EnvLogLevel))
	if !ok {
		level, ok = ParseLevel(cfg.Level)
		if !ok {
			level = zerolog.InfoLevel
		}
	}

	out := w
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level. The empty string and unknown
// names report false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// Package returns the global logger tagged with pkg=name.
func Package(name string) zerolog.Logger {
	return log.With().Str(PACKAGE, name).Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
