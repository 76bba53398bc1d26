package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("default max message size: got %d", cfg.MaxMessageSize)
	}
	if cfg.ReadTimeout != 0 || cfg.WriteTimeout != 0 {
		t.Errorf("default timeouts should block indefinitely, got %s/%s", cfg.ReadTimeout, cfg.WriteTimeout)
	}
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enb.toml")
	data := `
listen_addr = "127.0.0.1:9090"
transport = "QUIC"
max_message_size = 4096
read_timeout = "5s"
once = true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("listen addr: got %q", cfg.ListenAddr)
	}
	if cfg.Transport != TransportQUIC {
		t.Errorf("transport: got %q", cfg.Transport)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("max message size: got %d", cfg.MaxMessageSize)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout: got %s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 0 {
		t.Errorf("write timeout should keep default, got %s", cfg.WriteTimeout)
	}
	if !cfg.Once {
		t.Error("once not set")
	}
	if cfg.InstanceName != Default().InstanceName {
		t.Errorf("instance name should keep default, got %q", cfg.InstanceName)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", `listen_port = 8080`},
		{"bad transport", `transport = "sctp"`},
		{"bad duration", `read_timeout = "soon"`},
		{"negative duration", `write_timeout = "-1s"`},
		{"zero message size", `max_message_size = 0`},
		{"empty listen addr", `listen_addr = ""`},
		{"advertise without name", "advertise = true\ninstance_name = \"\""},
		{"not toml", `this is = = not toml`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTransportOptions(t *testing.T) {
	cfg := Default()
	cfg.ReadTimeout = time.Second
	cfg.WriteTimeout = 2 * time.Second
	opts := cfg.TransportOptions()
	if opts.MaxMessageSize != cfg.MaxMessageSize || opts.ReadTimeout != time.Second || opts.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}
