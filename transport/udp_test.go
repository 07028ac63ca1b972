package transport

import (
	"context"
	"testing"
	"time"

	"github.com/vinayprograms/netbus/errors"
)

func listenLoopback(t *testing.T, cfg UDPConfig) *UDPLink {
	t.Helper()
	l, err := ListenUDP("127.0.0.1:0", cfg)
	if err != nil {
		t.Skipf("skipping: cannot bind loopback UDP: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestUDPLink_RoundTrip(t *testing.T) {
	a := listenLoopback(t, UDPConfig{})
	b := listenLoopback(t, UDPConfig{})

	if a.Addr().Port() == 0 {
		t.Fatal("ephemeral port was not resolved")
	}

	frame := EncodeText("getstatus", "", ' ')
	if err := a.Send(b.Addr(), frame); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	dg, ok := b.Recv(ctx)
	if !ok {
		t.Fatal("timeout waiting for datagram")
	}
	if dg.From.Port() != a.Addr().Port() {
		t.Errorf("From = %v, want port %d", dg.From, a.Addr().Port())
	}
	cmd, data, ok := DecodeText(dg.Data)
	if !ok || cmd != "getstatus" || data != "" {
		t.Errorf("decoded = (%q, %q, %v)", cmd, data, ok)
	}
}

func TestUDPLink_RateLimit(t *testing.T) {
	a := listenLoopback(t, UDPConfig{RateLimit: 0.001, Burst: 1})
	b := listenLoopback(t, UDPConfig{})

	if err := a.Send(b.Addr(), []byte("1")); err != nil {
		t.Fatalf("first Send error: %v", err)
	}
	if err := a.Send(b.Addr(), []byte("2")); !errors.Is(err, errors.CodeRateLimit) {
		t.Errorf("second Send error = %v, want RATE_LIMITED", err)
	}
}

func TestUDPLink_Close(t *testing.T) {
	a := listenLoopback(t, UDPConfig{})
	b := listenLoopback(t, UDPConfig{})

	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if err := a.Send(b.Addr(), []byte("x")); !errors.Is(err, errors.CodeClosed) {
		t.Errorf("Send after Close error = %v, want CLOSED", err)
	}
	if _, ok := a.Recv(context.Background()); ok {
		t.Error("Recv after Close should return !ok")
	}
}

func TestListenUDP_BadAddress(t *testing.T) {
	if _, err := ListenUDP("not an address", UDPConfig{}); err == nil {
		t.Error("expected error for bad listen address")
	}
}
