// Package lifecycle ties the bus and the heartbeat to host load and unload.
//
// OnLoad initializes the bus and starts one heartbeat sender. OnUnload
// stops the sender, waits for it, and only then shuts the bus down, so no
// ping is ever attempted on a closed bus.
//
//	adapter, err := lifecycle.New(lifecycle.Config{Bus: netbus.Default()})
//	if err != nil {
//	    return err
//	}
//	if err := adapter.OnLoad(ctx); err != nil {
//	    return err
//	}
//	defer adapter.OnUnload(context.Background())
package lifecycle

import (
	"context"
	"sync"

	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/heartbeat"
	"github.com/vinayprograms/netbus/logging"
	"github.com/vinayprograms/netbus/shutdown"
)

var (
	// ErrAlreadyLoaded is returned by OnLoad after a successful OnLoad.
	ErrAlreadyLoaded = errors.New(errors.CodeInvalidInput, "already loaded", errors.WithOp("load"))

	// ErrNotLoaded is returned by OnUnload before OnLoad.
	ErrNotLoaded = errors.New(errors.CodeInvalidInput, "not loaded", errors.WithOp("unload"))

	// ErrUnloaded is returned by either hook once OnUnload has run.
	ErrUnloaded = errors.New(errors.CodeClosed, "already unloaded")
)

// Bus is what the adapter drives. *netbus.Bus satisfies it.
type Bus interface {
	heartbeat.Bus
	Init() error
	Shutdown()
}

// Config configures an Adapter.
type Config struct {
	// Bus is initialized on load and shut down on unload (required).
	Bus Bus

	// Heartbeat configures the sender. Its Bus field is overwritten with Bus.
	// Default: heartbeat.DefaultSenderConfig()
	Heartbeat heartbeat.SenderConfig

	// DisableHeartbeat loads the bus without a sender, for hosts that only
	// listen, such as the master.
	DisableHeartbeat bool

	// Shutdown configures the unload coordinator.
	// Default: shutdown.DefaultConfig()
	Shutdown shutdown.Config

	// Logger for lifecycle events.
	Logger *logging.Logger
}

type state int

const (
	stateIdle state = iota
	stateLoaded
	stateUnloaded
)

// Adapter bridges host load and unload events to the bus and heartbeat.
type Adapter struct {
	bus    Bus
	coord  *shutdown.Coordinator
	log    *logging.Logger
	sender *heartbeat.Sender

	mu     sync.Mutex
	state  state
	cancel context.CancelFunc
}

// New creates an adapter. Nothing starts until OnLoad.
func New(cfg Config) (*Adapter, error) {
	if cfg.Bus == nil {
		return nil, errors.InvalidInput("bus is required", errors.WithOp("lifecycle"))
	}
	if err := cfg.Shutdown.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	var sender *heartbeat.Sender
	if !cfg.DisableHeartbeat {
		hb := cfg.Heartbeat
		hb.Bus = cfg.Bus
		if hb.Logger == nil {
			hb.Logger = log
		}
		var err error
		if sender, err = heartbeat.NewSender(hb); err != nil {
			return nil, err
		}
	}

	sc := cfg.Shutdown
	if sc.Timeout <= 0 {
		sc = shutdown.DefaultConfig()
		sc.Logger = cfg.Shutdown.Logger
		sc.OnProgress = cfg.Shutdown.OnProgress
	}
	if sc.Logger == nil {
		sc.Logger = log
	}

	a := &Adapter{
		bus:    cfg.Bus,
		coord:  shutdown.NewCoordinator(sc),
		log:    log.WithComponent("lifecycle"),
		sender: sender,
	}

	if sender != nil {
		a.coord.RegisterFuncWithPhase("heartbeat", func(ctx context.Context) error {
			return a.sender.Stop()
		}, shutdown.PhaseHeartbeat)
	}
	a.coord.RegisterFuncWithPhase("netbus", func(ctx context.Context) error {
		a.bus.Shutdown()
		return nil
	}, shutdown.PhaseTransport)

	return a, nil
}

// OnLoad initializes the bus and starts the heartbeat. A bus whose transport
// could not be built is logged and tolerated; pings then fail quietly.
// The heartbeat outlives ctx's cancellation; only OnUnload stops it.
func (a *Adapter) OnLoad(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateLoaded:
		return ErrAlreadyLoaded
	case stateUnloaded:
		return ErrUnloaded
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := a.bus.Init(); err != nil {
		a.log.Warn("bus_degraded", map[string]interface{}{"error": err.Error()})
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	if a.sender == nil {
		a.state = stateLoaded
		a.log.Info("loaded", map[string]interface{}{"heartbeat": false})
		return nil
	}
	if err := a.sender.Start(runCtx); err != nil {
		cancel()
		return err
	}

	a.state = stateLoaded
	a.log.Info("loaded", map[string]interface{}{
		"master":   a.sender.Master().String(),
		"interval": a.sender.Interval().String(),
	})
	return nil
}

// OnUnload stops the heartbeat, waits for it, then shuts the bus down.
// ctx bounds the coordinator's steps; the heartbeat stop and the bus
// shutdown happen even when ctx has already expired.
func (a *Adapter) OnUnload(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case stateIdle:
		a.mu.Unlock()
		return ErrNotLoaded
	case stateUnloaded:
		a.mu.Unlock()
		return ErrUnloaded
	}
	a.state = stateUnloaded
	cancel := a.cancel
	a.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	err := a.coord.Shutdown(ctx)

	// The deadline may expire before the coordinator reaches either phase.
	// Finish the sequence here: Stop waits for the loop to exit, then the bus
	// goes down. Both are no-ops when their phase already ran.
	cancel()
	if a.sender != nil {
		_ = a.sender.Stop()
	}
	a.bus.Shutdown()

	if err != nil {
		a.log.Warn("unload_incomplete", map[string]interface{}{"error": err.Error()})
		return err
	}
	a.log.Info("unloaded")
	return nil
}

// Coordinator returns the unload coordinator so hosts can add their own
// steps, such as flushing telemetry.
func (a *Adapter) Coordinator() *shutdown.Coordinator {
	return a.coord
}

// Sender returns the heartbeat sender, or nil when the heartbeat is disabled.
func (a *Adapter) Sender() *heartbeat.Sender {
	return a.sender
}
