package transport

import (
	"context"
	"testing"
	"time"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
)

func TestSwitch_ListenDuplicate(t *testing.T) {
	sw := NewSwitch(DefaultConfig())
	addr := address.MustParse("10.0.0.1:1")

	l, err := sw.Listen(addr)
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	if _, err := sw.Listen(addr); !errors.Is(err, errors.CodeAddressInUse) {
		t.Errorf("duplicate Listen error = %v, want ADDRESS_IN_USE", err)
	}

	// Closing frees the address.
	l.Close()
	if _, err := sw.Listen(addr); err != nil {
		t.Errorf("Listen after close error: %v", err)
	}
}

func TestSwitch_ListenZero(t *testing.T) {
	sw := NewSwitch(DefaultConfig())
	if _, err := sw.Listen(address.Address{}); !errors.Is(err, errors.CodeInvalidAddress) {
		t.Errorf("error = %v, want INVALID_ADDRESS", err)
	}
}

func TestMemoryLink_SendRecv(t *testing.T) {
	sw := NewSwitch(DefaultConfig())
	a, _ := sw.Listen(address.MustParse("10.0.0.1:1"))
	b, _ := sw.Listen(address.MustParse("10.0.0.2:2"))

	frame := []byte("payload")
	if err := a.Send(b.Addr(), frame); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	frame[0] = 'X' // sender owns its buffer

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	dg, ok := b.Recv(ctx)
	if !ok {
		t.Fatal("Recv returned !ok")
	}
	if dg.From != a.Addr() {
		t.Errorf("From = %v, want %v", dg.From, a.Addr())
	}
	if string(dg.Data) != "payload" {
		t.Errorf("Data = %q, want payload", dg.Data)
	}
}

func TestMemoryLink_InboxFull(t *testing.T) {
	sw := NewSwitch(Config{InboxSize: 1})
	a, _ := sw.Listen(address.MustParse("10.0.0.1:1"))
	b, _ := sw.Listen(address.MustParse("10.0.0.2:2"))

	if err := a.Send(b.Addr(), []byte("1")); err != nil {
		t.Fatalf("first Send error: %v", err)
	}
	if err := a.Send(b.Addr(), []byte("2")); !errors.Is(err, errors.CodeCapacity) {
		t.Errorf("second Send error = %v, want CAPACITY", err)
	}
}

func TestMemoryLink_Close(t *testing.T) {
	sw := NewSwitch(DefaultConfig())
	a, _ := sw.Listen(address.MustParse("10.0.0.1:1"))
	b, _ := sw.Listen(address.MustParse("10.0.0.2:2"))

	a.Close()
	a.Close()

	if _, ok := a.Recv(context.Background()); ok {
		t.Error("Recv after Close should return !ok")
	}
	if err := a.Send(b.Addr(), []byte("x")); !errors.Is(err, errors.CodeClosed) {
		t.Errorf("Send after Close error = %v, want CLOSED", err)
	}
}

func TestSwitch_Factory(t *testing.T) {
	sw := NewSwitch(DefaultConfig())
	addr := address.MustParse("10.0.0.1:1")
	factory := sw.Factory(addr, ManagerConfig{})

	c, err := factory()
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	defer c.Shutdown()

	if _, err := factory(); !errors.Is(err, errors.CodeAddressInUse) {
		t.Errorf("second factory call error = %v, want ADDRESS_IN_USE", err)
	}
}
