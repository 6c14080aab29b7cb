package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omochice/hubify/internal/config"
	"github.com/omochice/hubify/internal/session"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != config.Default() {
		t.Errorf("Load(\"\") = %+v, want %+v", cfg, config.Default())
	}
	if cfg.Client.Addr != session.DefaultAddr {
		t.Errorf("Client.Addr = %q, want %q", cfg.Client.Addr, session.DefaultAddr)
	}
}

func TestLoad_OverlaysDefinedKeysOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubify.toml")
	data := `
[client]
addr = "10.0.0.5:4000"
dial_timeout = "250ms"
ui = "WS"

[server]
client_buffer = 8

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := config.Default()
	if cfg.Client.Addr != "10.0.0.5:4000" {
		t.Errorf("Client.Addr = %q, want %q", cfg.Client.Addr, "10.0.0.5:4000")
	}
	if cfg.Client.DialTimeout != 250*time.Millisecond {
		t.Errorf("Client.DialTimeout = %v, want 250ms", cfg.Client.DialTimeout)
	}
	if cfg.Client.UI != config.UIWS {
		t.Errorf("Client.UI = %q, want %q", cfg.Client.UI, config.UIWS)
	}
	if cfg.Client.SendBuffer != def.Client.SendBuffer {
		t.Errorf("Client.SendBuffer = %d, want default %d", cfg.Client.SendBuffer, def.Client.SendBuffer)
	}
	if cfg.Server.ClientBuffer != 8 {
		t.Errorf("Server.ClientBuffer = %d, want 8", cfg.Server.ClientBuffer)
	}
	if cfg.Server.Listen != def.Server.Listen {
		t.Errorf("Server.Listen = %q, want default %q", cfg.Server.Listen, def.Server.Listen)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Console != def.Log.Console {
		t.Errorf("Log.Console = %v, want default %v", cfg.Log.Console, def.Log.Console)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", "[client\naddr = 1", "decode config"},
		{"bad duration", "[client]\ndial_timeout = \"soon\"", "client.dial_timeout"},
		{"zero send buffer", "[client]\nsend_buffer = 0", "client.send_buffer"},
		{"unknown ui", "[client]\nui = \"gtk\"", "client.ui"},
		{"empty addr", "[client]\naddr = \" \"", "client.addr"},
		{"empty listen", "[server]\nlisten = \"\"", "server.listen"},
		{"bad level", "[log]\nlevel = \"loud\"", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Decode(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDecode_EmptyAdminListenAllowed(t *testing.T) {
	cfg, err := config.Decode("[server]\nadmin_listen = \"\"")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Server.AdminListen != "" {
		t.Errorf("Server.AdminListen = %q, want empty", cfg.Server.AdminListen)
	}
}

func TestClient_Session(t *testing.T) {
	c := config.Client{
		Addr:        "example:1",
		DialTimeout: time.Second,
		SendBuffer:  3,
		ReadBuffer:  7,
	}
	got := c.Session()
	want := session.Config{Addr: "example:1", DialTimeout: time.Second, SendBuffer: 3, ReadBufferSize: 7}
	if got != want {
		t.Errorf("Session() = %+v, want %+v", got, want)
	}
}

func TestDecode_MetricsListen(t *testing.T) {
	if got := config.Default().Client.MetricsListen; got != "" {
		t.Errorf("default Client.MetricsListen = %q, want empty", got)
	}

	cfg, err := config.Decode("[client]\nmetrics_listen = \" 127.0.0.1:9103 \"")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Client.MetricsListen != "127.0.0.1:9103" {
		t.Errorf("Client.MetricsListen = %q, want %q", cfg.Client.MetricsListen, "127.0.0.1:9103")
	}
}
