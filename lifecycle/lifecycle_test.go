package lifecycle

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/heartbeat"
	"github.com/vinayprograms/netbus/netbus"
	"github.com/vinayprograms/netbus/shutdown"
	"github.com/vinayprograms/netbus/telemetry"
	"github.com/vinayprograms/netbus/transport"
)

const interval = 10 * time.Millisecond

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeBus records calls in order and flags any send after Shutdown.
type fakeBus struct {
	initErr error

	// onShutdown runs on the first Shutdown, before it is recorded.
	onShutdown func()

	mu                sync.Mutex
	events            []string
	shut              bool
	sendAfterShutdown bool

	sent    chan struct{}
	block   bool
	release chan struct{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		sent:    make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (b *fakeBus) record(ev string) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *fakeBus) Init() error {
	b.record("init")
	return b.initErr
}

func (b *fakeBus) Send(to address.Address, command, data string) bool {
	b.mu.Lock()
	if b.shut {
		b.sendAfterShutdown = true
	}
	b.events = append(b.events, "send:"+command)
	block := b.block
	b.mu.Unlock()

	b.sent <- struct{}{}
	if block {
		<-b.release
	}
	return true
}

func (b *fakeBus) Shutdown() {
	b.mu.Lock()
	first := !b.shut
	b.mu.Unlock()
	if first && b.onShutdown != nil {
		b.onShutdown()
	}

	b.mu.Lock()
	if !b.shut {
		b.events = append(b.events, "shutdown")
	}
	b.shut = true
	b.mu.Unlock()
}

func (b *fakeBus) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func newAdapter(t *testing.T, bus Bus, clock clockwork.Clock) *Adapter {
	t.Helper()
	a, err := New(Config{
		Bus: bus,
		Heartbeat: heartbeat.SenderConfig{
			Interval: interval,
			Clock:    clock,
			Tracer:   telemetry.Noop(),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func waitTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

func waitSend(t *testing.T, b *fakeBus) {
	t.Helper()
	select {
	case <-b.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ping")
	}
}

// --- Unit Tests ---

func TestNew_RequiresBus(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestNew_RejectsNegativeShutdownTimeout(t *testing.T) {
	_, err := New(Config{Bus: newFakeBus(), Shutdown: shutdown.Config{Timeout: -time.Second}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAdapter_OnLoadStartsHeartbeat(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClockAt(epoch)
	a := newAdapter(t, bus, clock)

	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	defer a.OnUnload(context.Background())

	if a.Sender().State() != heartbeat.StateRunning {
		t.Fatalf("sender state = %v, want running", a.Sender().State())
	}
	if a.Sender().Master() != address.Master() {
		t.Errorf("master = %v", a.Sender().Master())
	}

	waitTimers(t, clock, 1)
	clock.Advance(interval)
	waitSend(t, bus)

	events := bus.snapshot()
	if len(events) < 2 || events[0] != "init" || events[1] != "send:ping" {
		t.Errorf("events = %v", events)
	}
}

func TestAdapter_DegradedBusIsNotFatal(t *testing.T) {
	bus := newFakeBus()
	bus.initErr = errors.New(errors.CodeNotInitialized, "no socket")
	a := newAdapter(t, bus, clockwork.NewFakeClockAt(epoch))

	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if a.Sender().State() != heartbeat.StateRunning {
		t.Error("heartbeat should run on a degraded bus")
	}
	if err := a.OnUnload(context.Background()); err != nil {
		t.Fatalf("OnUnload: %v", err)
	}
}

func TestAdapter_HookMisuse(t *testing.T) {
	a := newAdapter(t, newFakeBus(), clockwork.NewFakeClockAt(epoch))
	ctx := context.Background()

	if err := a.OnUnload(ctx); !stderrors.Is(err, ErrNotLoaded) {
		t.Errorf("unload before load: got %v, want ErrNotLoaded", err)
	}
	if err := a.OnLoad(ctx); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if err := a.OnLoad(ctx); !stderrors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second load: got %v, want ErrAlreadyLoaded", err)
	}
	if err := a.OnUnload(ctx); err != nil {
		t.Fatalf("OnUnload: %v", err)
	}
	if err := a.OnUnload(ctx); !stderrors.Is(err, ErrUnloaded) {
		t.Errorf("second unload: got %v, want ErrUnloaded", err)
	}
	if err := a.OnLoad(ctx); !stderrors.Is(err, ErrUnloaded) {
		t.Errorf("load after unload: got %v, want ErrUnloaded", err)
	}
}

func TestAdapter_HeartbeatStopsBeforeBusShutdown(t *testing.T) {
	bus := newFakeBus()
	bus.block = true
	clock := clockwork.NewFakeClockAt(epoch)
	a := newAdapter(t, bus, clock)

	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}

	// Hold a ping in flight while unloading.
	waitTimers(t, clock, 1)
	clock.Advance(interval)
	waitSend(t, bus)

	unloaded := make(chan error, 1)
	go func() { unloaded <- a.OnUnload(context.Background()) }()

	select {
	case <-unloaded:
		t.Fatal("OnUnload returned while a ping was in flight")
	case <-time.After(30 * time.Millisecond):
	}
	for _, ev := range bus.snapshot() {
		if ev == "shutdown" {
			t.Fatal("bus shut down before heartbeat stopped")
		}
	}

	close(bus.release)
	select {
	case err := <-unloaded:
		if err != nil {
			t.Fatalf("OnUnload: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnUnload never returned")
	}

	events := bus.snapshot()
	if events[len(events)-1] != "shutdown" {
		t.Errorf("last event = %q, want shutdown (events %v)", events[len(events)-1], events)
	}
	if a.Sender().State() != heartbeat.StateStopped {
		t.Errorf("sender state = %v, want stopped", a.Sender().State())
	}

	// Time passing after unload must not produce pings.
	clock.Advance(10 * interval)
	time.Sleep(10 * time.Millisecond)
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.sendAfterShutdown {
		t.Error("ping sent after bus shutdown")
	}
}

func TestAdapter_LoadContextCancelKeepsHeartbeat(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClockAt(epoch)
	a := newAdapter(t, bus, clock)

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.OnLoad(ctx); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	cancel()
	defer a.OnUnload(context.Background())

	waitTimers(t, clock, 1)
	clock.Advance(interval)
	waitSend(t, bus)

	if a.Sender().State() != heartbeat.StateRunning {
		t.Errorf("sender state = %v, want running", a.Sender().State())
	}
}

func TestAdapter_HostStepsRunAfterBus(t *testing.T) {
	bus := newFakeBus()
	a := newAdapter(t, bus, clockwork.NewFakeClockAt(epoch))

	a.Coordinator().RegisterFuncWithPhase("telemetry", func(ctx context.Context) error {
		bus.record("telemetry")
		return nil
	}, shutdown.PhaseTelemetry)

	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if err := a.OnUnload(context.Background()); err != nil {
		t.Fatalf("OnUnload: %v", err)
	}

	events := bus.snapshot()
	if len(events) < 2 || events[len(events)-2] != "shutdown" || events[len(events)-1] != "telemetry" {
		t.Errorf("events = %v", events)
	}
}

func TestAdapter_UnloadWithExpiredContextStillStopsInOrder(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClockAt(epoch)
	a := newAdapter(t, bus, clock)

	stoppedFirst := false
	bus.onShutdown = func() {
		stoppedFirst = a.Sender().State() == heartbeat.StateStopped
	}

	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	waitTimers(t, clock, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.OnUnload(ctx); !stderrors.Is(err, shutdown.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	events := bus.snapshot()
	if len(events) == 0 || events[len(events)-1] != "shutdown" {
		t.Fatalf("bus not shut down after unload, events = %v", events)
	}
	if !stoppedFirst {
		t.Error("bus shut down before the heartbeat stopped")
	}
	if err := a.OnUnload(context.Background()); !stderrors.Is(err, ErrUnloaded) {
		t.Errorf("second unload: got %v, want ErrUnloaded", err)
	}

	clock.Advance(10 * interval)
	time.Sleep(10 * time.Millisecond)
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.sendAfterShutdown {
		t.Error("ping sent after bus shutdown")
	}
}

// --- Integration Tests ---

func TestAdapter_PingsReachMasterOverSwitch(t *testing.T) {
	sw := transport.NewSwitch(transport.DefaultConfig())
	nodeAddr := address.MustParse("10.0.0.7:28961")

	master := netbus.New(netbus.Options{
		Factory:    sw.Factory(address.Master(), transport.ManagerConfig{}),
		Registerer: prometheus.NewRegistry(),
		Tracer:     telemetry.Noop(),
	})
	defer master.Shutdown()

	node := netbus.New(netbus.Options{
		Factory:    sw.Factory(nodeAddr, transport.ManagerConfig{}),
		Registerer: prometheus.NewRegistry(),
		Tracer:     telemetry.Noop(),
	})

	pings := make(chan address.Address, 8)
	master.On(heartbeat.DefaultCommand, func(from address.Address, data string) {
		pings <- from
	})

	clock := clockwork.NewFakeClockAt(epoch)
	a := newAdapter(t, node, clock)
	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}

	waitTimers(t, clock, 1)
	clock.Advance(interval)

	select {
	case from := <-pings:
		if from != nodeAddr {
			t.Errorf("ping from %v, want %v", from, nodeAddr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("master never received a ping")
	}

	if err := a.OnUnload(context.Background()); err != nil {
		t.Fatalf("OnUnload: %v", err)
	}
	if !node.Closed() {
		t.Error("node bus should be closed after unload")
	}
}

func TestAdapter_DisableHeartbeat(t *testing.T) {
	bus := newFakeBus()
	a, err := New(Config{Bus: bus, DisableHeartbeat: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Sender() != nil {
		t.Fatal("expected no sender")
	}

	if err := a.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if err := a.OnUnload(context.Background()); err != nil {
		t.Fatalf("OnUnload: %v", err)
	}

	events := bus.snapshot()
	if len(events) != 2 || events[0] != "init" || events[1] != "shutdown" {
		t.Errorf("events = %v, want [init shutdown]", events)
	}
}
