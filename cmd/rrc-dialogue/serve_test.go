package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"tarun-kavipurapu/rrc-dialogue/pkg/config"
)

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enb.toml")
	data := "listen_addr = \"127.0.0.1:9000\"\ntransport = \"quic\"\nread_timeout = \"2s\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.AddFlagSet(serveCmd.Flags())
	if err := flags.Parse([]string{"--addr", "127.0.0.1:9100", "--once"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := resolveConfig(path, flags)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("flag should win over file, got %q", cfg.ListenAddr)
	}
	if cfg.Transport != config.TransportQUIC || cfg.ReadTimeout != 2*time.Second {
		t.Errorf("file values lost: %+v", cfg)
	}
	if !cfg.Once {
		t.Error("once flag not applied")
	}
}

func TestResolveConfigRejectsBadFlag(t *testing.T) {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.AddFlagSet(serveCmd.Flags())
	if err := flags.Parse([]string{"--transport", "sctp"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := resolveConfig("", flags); err == nil {
		t.Fatal("expected validation error")
	}
}
