package netbus

import (
	"sync/atomic"
	"testing"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/transport"
)

func TestDefault_UsesInstalledFactory(t *testing.T) {
	resetDefault()
	t.Cleanup(resetDefault)

	ft := newFakeTransport()
	var calls atomic.Int32
	if err := SetDefaultFactory(countingFactory(ft, &calls)); err != nil {
		t.Fatalf("SetDefaultFactory error: %v", err)
	}

	if Default() != Default() {
		t.Fatal("Default should return the same bus")
	}

	if !Send(peer, "ping", "") {
		t.Error("Send returned false")
	}
	if !SendData(peer, []byte("a")) || !SendString(peer, "a") {
		t.Error("raw sends returned false")
	}
	cancel := On("getinfo", func(from address.Address, data string) {})
	defer cancel()

	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", calls.Load())
	}
	if texts, raw, _ := ft.calls(); texts != 1 || raw != 2 {
		t.Errorf("texts=%d raw=%d, want 1 and 2", texts, raw)
	}
}

func TestDefault_SetAfterCreation(t *testing.T) {
	resetDefault()
	t.Cleanup(resetDefault)

	Default()

	err := SetDefaultFactory(func() (transport.Collaborator, error) { return newFakeTransport(), nil })
	if !errors.Is(err, errors.CodeClosed) {
		t.Errorf("SetDefaultFactory error = %v, want CLOSED", err)
	}
	if err := SetDefaultOptions(Options{}); !errors.Is(err, errors.CodeClosed) {
		t.Errorf("SetDefaultOptions error = %v, want CLOSED", err)
	}
}
