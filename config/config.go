// Package config loads netbus node configuration from TOML.
//
// Example netbus.toml:
//
//	[node]
//	name = "node-1"
//
//	[transport]
//	kind   = "udp"
//	listen = "0.0.0.0:28961"
//
//	[master]
//	address = "26.88.68.147:28960"
//
//	[heartbeat]
//	interval = "5s"
//
//	[logging]
//	level = "info"
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
)

// Environment overrides applied by Load and FromEnv.
const (
	EnvMaster    = "NETBUS_MASTER"
	EnvListen    = "NETBUS_LISTEN"
	EnvTransport = "NETBUS_TRANSPORT"
	EnvNATSURL   = "NETBUS_NATS_URL"
)

// Transport kinds.
const (
	KindMemory    = "memory"
	KindUDP       = "udp"
	KindNATS      = "nats"
	KindWebSocket = "websocket"
)

// Duration is a time.Duration that decodes from "5s"-style strings.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full node configuration.
type Config struct {
	Node      Node      `toml:"node"`
	Master    Master    `toml:"master"`
	Heartbeat Heartbeat `toml:"heartbeat"`
	Transport Transport `toml:"transport"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
	Tracing   Tracing   `toml:"tracing"`
}

// Node identifies this process.
type Node struct {
	// Name is used as the NATS client name and in logs.
	Name string `toml:"name"`
}

// Master points at the well-known master endpoint.
type Master struct {
	Address string `toml:"address"`
}

// Heartbeat configures the liveness task.
type Heartbeat struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Command  string   `toml:"command"`

	// Timeout is used by the master-side monitor.
	Timeout Duration `toml:"timeout"`
}

// Transport selects and configures the transport link.
type Transport struct {
	Kind string `toml:"kind"`

	// Listen is the local bind address. For NATS it is the node's logical
	// address and must carry a non-zero port.
	Listen string `toml:"listen"`

	// InboxSize bounds queued inbound frames for every link kind.
	InboxSize int `toml:"inbox_size"`

	UDP       UDP       `toml:"udp"`
	NATS      NATS      `toml:"nats"`
	WebSocket WebSocket `toml:"websocket"`
}

// UDP tunes the UDP link.
type UDP struct {
	// RateLimit caps outbound datagrams per second. 0 disables the limit.
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// NATS configures the NATS link.
type NATS struct {
	URL           string   `toml:"url"`
	SubjectPrefix string   `toml:"subject_prefix"`
	Token         string   `toml:"token"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	ReconnectWait Duration `toml:"reconnect_wait"`
}

// WebSocket configures the WebSocket link.
type WebSocket struct {
	Path         string   `toml:"path"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// Logging configures the logger.
type Logging struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

// Metrics configures the Prometheus endpoint. Empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Tracing configures OTLP span export. Empty Endpoint disables it.
type Tracing struct {
	Endpoint string `toml:"endpoint"`
	Protocol string `toml:"protocol"` // grpc or http
	Insecure bool   `toml:"insecure"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		Node:   Node{Name: "netbus"},
		Master: Master{Address: address.MasterLiteral},
		Heartbeat: Heartbeat{
			Enabled:  true,
			Interval: Duration{5 * time.Second},
			Command:  "ping",
			Timeout:  Duration{15 * time.Second},
		},
		Transport: Transport{
			Kind:      KindUDP,
			Listen:    "0.0.0.0:0",
			InboxSize: 256,
			NATS: NATS{
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "netbus",
				ReconnectWait: Duration{2 * time.Second},
			},
			WebSocket: WebSocket{
				Path:         "/netbus",
				WriteTimeout: Duration{10 * time.Second},
			},
		},
		Logging: Logging{Level: "info", Console: true},
		Tracing: Tracing{Protocol: "grpc"},
	}
}

// Load reads path over the defaults, applies env overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with env overrides applied.
func FromEnv() (Config, error) {
	cfg := Default()
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvMaster)); v != "" {
		cfg.Master.Address = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		cfg.Transport.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTransport)); v != "" {
		cfg.Transport.Kind = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvNATSURL)); v != "" {
		cfg.Transport.NATS.URL = v
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := c.MasterAddress(); err != nil {
		return err
	}
	switch c.Transport.Kind {
	case KindMemory, KindUDP, KindNATS, KindWebSocket:
	default:
		return errors.InvalidInput(fmt.Sprintf("unknown transport kind %q", c.Transport.Kind))
	}
	if strings.TrimSpace(c.Transport.Listen) == "" {
		return errors.InvalidInput("transport.listen is required")
	}
	if c.Heartbeat.Enabled && c.Heartbeat.Interval.Duration <= 0 {
		return errors.InvalidInput("heartbeat.interval must be positive")
	}
	if c.Heartbeat.Enabled && strings.TrimSpace(c.Heartbeat.Command) == "" {
		return errors.InvalidInput("heartbeat.command must not be empty")
	}
	switch c.Tracing.Protocol {
	case "", "grpc", "http":
	default:
		return errors.InvalidInput(fmt.Sprintf("unknown tracing protocol %q", c.Tracing.Protocol))
	}
	if c.Transport.InboxSize < 0 {
		return errors.InvalidInput("transport.inbox_size must not be negative")
	}
	if c.Transport.UDP.RateLimit < 0 {
		return errors.InvalidInput("transport.udp.rate_limit must not be negative")
	}
	return nil
}

// MasterAddress parses the configured master endpoint.
func (c Config) MasterAddress() (address.Address, error) {
	return address.Parse(c.Master.Address)
}
