package transport

import (
	"testing"

	"github.com/vinayprograms/netbus/config"
	"github.com/vinayprograms/netbus/errors"
)

func TestNewFactory_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Kind = config.KindMemory
	cfg.Transport.Listen = "10.0.0.1:1"

	sw := NewSwitch(DefaultConfig())
	c, err := NewFactory(cfg, sw, nil)()
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	defer c.Shutdown()

	m, ok := c.(*Manager)
	if !ok {
		t.Fatalf("collaborator is %T, want *Manager", c)
	}
	if m.Addr().String() != "10.0.0.1:1" {
		t.Errorf("Addr = %v", m.Addr())
	}
}

func TestNewFactory_MemoryWithoutSwitch(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Kind = config.KindMemory
	cfg.Transport.Listen = "10.0.0.1:1"

	if _, err := NewFactory(cfg, nil, nil)(); !errors.Is(err, errors.CodeNotInitialized) {
		t.Errorf("error = %v, want NOT_INITIALIZED", err)
	}
}

func TestNewFactory_UDP(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Listen = "127.0.0.1:0"

	c, err := NewFactory(cfg, nil, nil)()
	if err != nil {
		t.Skipf("skipping: cannot bind loopback UDP: %v", err)
	}
	defer c.Shutdown()

	if c.(*Manager).Addr().Port() == 0 {
		t.Error("expected a bound port")
	}
}

func TestNewFactory_UnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Kind = "carrier-pigeon"

	if _, err := NewFactory(cfg, nil, nil)(); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestNewFactory_InboxSizeAppliesToEveryKind(t *testing.T) {
	tests := []struct {
		kind string
		in   func(Link) chan Datagram
	}{
		{config.KindUDP, func(l Link) chan Datagram { return l.(*UDPLink).in }},
		{config.KindWebSocket, func(l Link) chan Datagram { return l.(*WebSocketLink).in }},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := config.Default()
			cfg.Transport.Kind = tt.kind
			cfg.Transport.Listen = "127.0.0.1:0"
			cfg.Transport.InboxSize = 7

			c, err := NewFactory(cfg, nil, nil)()
			if err != nil {
				t.Skipf("skipping: cannot bind loopback: %v", err)
			}
			defer c.Shutdown()

			if got := cap(tt.in(c.(*Manager).link)); got != 7 {
				t.Errorf("inbox capacity = %d, want 7", got)
			}
		})
	}
}
