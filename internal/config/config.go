// Package config loads hubify's TOML configuration file.
//
// A file only needs to name the keys it changes. Every key that is absent keeps
// its default, so an empty file and no file at all behave the same.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/session"
)

// UI front-ends the client can run.
const (
	UITerminal = "terminal"
	UIWS       = "ws"
)

// Default addresses.
const (
	DefaultUIListen    = "127.0.0.1:1212"
	DefaultListen      = ":3002"
	DefaultAdminListen = "127.0.0.1:9102"
)

const defaultClientBuffer = 64

// Client configures hubify-client.
type Client struct {
	Addr          string
	DialTimeout   time.Duration
	SendBuffer    int
	ReadBuffer    int
	UI            string
	UIListen      string
	// MetricsListen serves the session's /metrics. Empty disables it.
	MetricsListen string
}

// Server configures hubify-server.
type Server struct {
	Listen       string
	AdminListen  string
	ClientBuffer int
}

// Config is the whole configuration file.
type Config struct {
	Client Client
	Server Server
	Log    logging.Config
}

// Default returns the configuration used without a file.
func Default() Config {
	s := session.DefaultConfig()
	return Config{
		Client: Client{
			Addr:        s.Addr,
			DialTimeout: s.DialTimeout,
			SendBuffer:  s.SendBuffer,
			ReadBuffer:  s.ReadBufferSize,
			UI:          UITerminal,
			UIListen:    DefaultUIListen,
		},
		Server: Server{
			Listen:       DefaultListen,
			AdminListen:  DefaultAdminListen,
			ClientBuffer: defaultClientBuffer,
		},
		Log: logging.DefaultConfig(),
	}
}

type fileConfig struct {
	Client struct {
		Addr          string `toml:"addr"`
		DialTimeout   string `toml:"dial_timeout"`
		SendBuffer    int    `toml:"send_buffer"`
		ReadBuffer    int    `toml:"read_buffer"`
		UI            string `toml:"ui"`
		UIListen      string `toml:"ui_listen"`
		MetricsListen string `toml:"metrics_listen"`
	} `toml:"client"`
	Server struct {
		Listen       string `toml:"listen"`
		AdminListen  string `toml:"admin_listen"`
		ClientBuffer int    `toml:"client_buffer"`
	} `toml:"server"`
	Log struct {
		Level   string `toml:"level"`
		Console bool   `toml:"console"`
	} `toml:"log"`
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	if err := cfg.apply(meta, raw); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Decode is Load for configuration held in memory.
func Decode(data string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.apply(meta, raw); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(meta toml.MetaData, raw fileConfig) error {
	if meta.IsDefined("client", "addr") {
		c.Client.Addr = strings.TrimSpace(raw.Client.Addr)
	}
	if meta.IsDefined("client", "dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Client.DialTimeout))
		if err != nil {
			return errors.Wrap(err, "parse client.dial_timeout")
		}
		c.Client.DialTimeout = d
	}
	if meta.IsDefined("client", "send_buffer") {
		c.Client.SendBuffer = raw.Client.SendBuffer
	}
	if meta.IsDefined("client", "read_buffer") {
		c.Client.ReadBuffer = raw.Client.ReadBuffer
	}
	if meta.IsDefined("client", "ui") {
		c.Client.UI = strings.ToLower(strings.TrimSpace(raw.Client.UI))
	}
	if meta.IsDefined("client", "ui_listen") {
		c.Client.UIListen = strings.TrimSpace(raw.Client.UIListen)
	}
	if meta.IsDefined("client", "metrics_listen") {
		c.Client.MetricsListen = strings.TrimSpace(raw.Client.MetricsListen)
	}

	if meta.IsDefined("server", "listen") {
		c.Server.Listen = strings.TrimSpace(raw.Server.Listen)
	}
	if meta.IsDefined("server", "admin_listen") {
		c.Server.AdminListen = strings.TrimSpace(raw.Server.AdminListen)
	}
	if meta.IsDefined("server", "client_buffer") {
		c.Server.ClientBuffer = raw.Server.ClientBuffer
	}

	if meta.IsDefined("log", "level") {
		c.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "console") {
		c.Log.Console = raw.Log.Console
	}
	return nil
}

// Validate rejects values no component can run with. An empty admin_listen or
// metrics_listen disables that endpoint and is allowed.
func (c Config) Validate() error {
	if c.Client.Addr == "" {
		return errors.New("client.addr is required")
	}
	if c.Client.DialTimeout <= 0 {
		return errors.Errorf("client.dial_timeout must be positive, got %s", c.Client.DialTimeout)
	}
	if c.Client.SendBuffer <= 0 {
		return errors.Errorf("client.send_buffer must be positive, got %d", c.Client.SendBuffer)
	}
	if c.Client.ReadBuffer <= 0 {
		return errors.Errorf("client.read_buffer must be positive, got %d", c.Client.ReadBuffer)
	}
	switch c.Client.UI {
	case UITerminal:
	case UIWS:
		if c.Client.UIListen == "" {
			return errors.New("client.ui_listen is required when client.ui is \"ws\"")
		}
	default:
		return errors.Errorf("client.ui must be %q or %q, got %q", UITerminal, UIWS, c.Client.UI)
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen is required")
	}
	if c.Server.ClientBuffer <= 0 {
		return errors.Errorf("server.client_buffer must be positive, got %d", c.Server.ClientBuffer)
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return errors.Errorf("log.level %q is not a known level", c.Log.Level)
	}
	return nil
}

// Session converts the client section into a session configuration.
func (c Client) Session() session.Config {
	return session.Config{
		Addr:           c.Addr,
		DialTimeout:    c.DialTimeout,
		SendBuffer:     c.SendBuffer,
		ReadBufferSize: c.ReadBuffer,
	}
}
