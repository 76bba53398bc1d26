package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
)

const (
	TransportTCP  = "tcp"
	TransportQUIC = "quic"
)

// Config is the eNB endpoint configuration.
type Config struct {
	ListenAddr     string
	Transport      string
	MaxMessageSize uint32
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// Once stops the server after the first handshake finishes.
	Once         bool
	Advertise    bool
	InstanceName string
	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string
}

func Default() Config {
	return Config{
		ListenAddr:     "0.0.0.0:8080",
		Transport:      TransportTCP,
		MaxMessageSize: transport.DefaultMaxMessageSize,
		InstanceName:   "rrc-enb",
	}
}

// TransportOptions projects the transport-facing settings.
func (c Config) TransportOptions() transport.Options {
	return transport.Options{
		MaxMessageSize: c.MaxMessageSize,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
	}
}

type fileConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	Transport      string `toml:"transport"`
	MaxMessageSize int64  `toml:"max_message_size"`
	ReadTimeout    string `toml:"read_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
	Once           bool   `toml:"once"`
	Advertise      bool   `toml:"advertise"`
	InstanceName   string `toml:"instance_name"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// Load reads a TOML file and overlays the keys it defines on Default().
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return fromFile(raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return fromFile(raw, meta)
}

func fromFile(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("max_message_size") {
		if raw.MaxMessageSize <= 0 || raw.MaxMessageSize > int64(^uint32(0)) {
			return Config{}, fmt.Errorf("max_message_size %d out of range", raw.MaxMessageSize)
		}
		cfg.MaxMessageSize = uint32(raw.MaxMessageSize)
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseDuration("read_timeout", raw.ReadTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.WriteTimeout = d
	}
	if meta.IsDefined("once") {
		cfg.Once = raw.Once
	}
	if meta.IsDefined("advertise") {
		cfg.Advertise = raw.Advertise
	}
	if meta.IsDefined("instance_name") {
		cfg.InstanceName = strings.TrimSpace(raw.InstanceName)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("config missing listen_addr")
	}
	switch c.Transport {
	case TransportTCP, TransportQUIC:
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	if c.MaxMessageSize == 0 {
		return fmt.Errorf("max_message_size must be positive")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Advertise && strings.TrimSpace(c.InstanceName) == "" {
		return fmt.Errorf("instance_name required when advertise is set")
	}
	return nil
}
