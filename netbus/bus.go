package netbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
	"github.com/vinayprograms/netbus/telemetry"
	"github.com/vinayprograms/netbus/transport"
)

// Handler is invoked with the sender and the data following the command.
type Handler = transport.Handler

// Options configures a Bus.
type Options struct {
	// Factory builds the transport on first use (required).
	Factory transport.Factory

	// Logger receives bus events. Default: discard.
	Logger *logging.Logger

	// Registerer receives the bus metrics. Default: a private registry.
	Registerer prometheus.Registerer

	// Tracer wraps every send in a span. Default: telemetry.GetTracer().
	Tracer *telemetry.Tracer
}

// Bus owns one transport collaborator, constructed lazily and at most once.
// All methods are safe for concurrent use.
type Bus struct {
	id      string
	factory transport.Factory
	log     *logging.Logger
	tracer  *telemetry.Tracer
	metrics *Metrics

	initOnce  sync.Once
	built     atomic.Bool
	transport transport.Collaborator
	initErr   error

	closed       atomic.Bool
	shutdownOnce sync.Once

	mu   sync.Mutex
	regs map[string]*registration
}

type registration struct {
	command string
}

// New creates a Bus. Nothing is constructed until the first operation.
func New(opts Options) *Bus {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}

	id := uuid.New().String()
	return &Bus{
		id:      id,
		factory: opts.Factory,
		log:     log.WithComponent("netbus").With("bus_id", id),
		tracer:  tracer,
		metrics: NewMetrics(opts.Registerer),
		regs:    make(map[string]*registration),
	}
}

// ID returns the instance id included in every log line.
func (b *Bus) ID() string {
	return b.id
}

// Init constructs the transport if that has not happened yet and returns
// the construction error, if any.
func (b *Bus) Init() error {
	b.ensure()
	return b.Err()
}

// Err returns the construction error. It is nil before first use, after a
// successful construction, and after a Shutdown that preceded first use.
func (b *Bus) Err() error {
	if !b.built.Load() || errors.Is(b.initErr, errors.CodeClosed) {
		return nil
	}
	return b.initErr
}

// ensure runs the factory exactly once unless the bus was shut down first.
func (b *Bus) ensure() {
	b.initOnce.Do(func() {
		defer b.built.Store(true)

		if b.closed.Load() {
			b.initErr = errors.Closed("init")
			return
		}
		if b.factory == nil {
			b.initErr = errors.New(errors.CodeNotInitialized, "no transport factory", errors.WithOp("init"))
		} else {
			t, err := b.factory()
			switch {
			case err != nil:
				b.initErr = errors.Wrap(err, errors.CodeNotInitialized, "construct transport", errors.WithOp("init"))
			case t == nil:
				b.initErr = errors.New(errors.CodeNotInitialized, "factory returned no transport", errors.WithOp("init"))
			default:
				b.transport = t
			}
		}

		if b.initErr != nil {
			b.metrics.InitFailuresTotal.Inc()
			b.log.Error("transport_init_failed", map[string]interface{}{"error": b.initErr.Error()})
			return
		}
		b.log.Info("transport_ready")
	})
}

// acquire returns the live transport or the reason there is none.
func (b *Bus) acquire(op string) (transport.Collaborator, error) {
	if b.closed.Load() {
		return nil, errors.Closed(op)
	}
	b.ensure()
	if b.initErr != nil {
		return nil, b.initErr
	}
	return b.transport, nil
}

// On registers cb for command and returns a func that removes it. A later
// registration for the same command replaces this one; the returned func
// then does nothing. Failures are logged and yield a no-op func.
func (b *Bus) On(command string, cb Handler) func() {
	noop := func() {}

	if command == "" || cb == nil {
		b.log.Warn("register_rejected", map[string]interface{}{
			"command": command,
			"reason":  "empty command or nil handler",
		})
		return noop
	}

	t, err := b.acquire("register")
	if err != nil {
		b.log.Warn("register_failed", map[string]interface{}{
			"command": command,
			"error":   err.Error(),
		})
		return noop
	}

	cancel, err := t.On(command, cb)
	if err != nil {
		b.log.Warn("register_failed", map[string]interface{}{
			"command": command,
			"error":   err.Error(),
		})
		return noop
	}

	reg := &registration{command: command}
	b.mu.Lock()
	b.regs[command] = reg
	b.metrics.HandlersRegistered.Set(float64(len(b.regs)))
	b.mu.Unlock()

	b.log.Debug("handler_registered", map[string]interface{}{"command": command})

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			b.mu.Lock()
			if b.regs[command] == reg {
				delete(b.regs, command)
			}
			b.metrics.HandlersRegistered.Set(float64(len(b.regs)))
			b.mu.Unlock()
		})
	}
}

// Send sends command and data to the peer joined by the default separator.
func (b *Bus) Send(to address.Address, command, data string) bool {
	return b.SendWithSeparator(to, command, data, transport.DefaultSeparator)
}

// SendWithSeparator sends command and data joined by sep. Peers running
// netbus dispatch only frames joined by ' ' or '\n'; other separators are
// for peers that parse frames themselves.
func (b *Bus) SendWithSeparator(to address.Address, command, data string, sep byte) bool {
	return b.send(KindText, to, command, len(data), func(t transport.Collaborator) error {
		return t.SendText(to, command, data, sep)
	})
}

// SendData sends data to the peer unframed.
func (b *Bus) SendData(to address.Address, data []byte) bool {
	return b.send(KindBytes, to, "", len(data), func(t transport.Collaborator) error {
		return t.SendBytes(to, data)
	})
}

// SendString sends the bytes of s to the peer unframed. It is equivalent
// to SendData(to, []byte(s)).
func (b *Bus) SendString(to address.Address, s string) bool {
	return b.send(KindString, to, "", len(s), func(t transport.Collaborator) error {
		return t.SendBytes(to, []byte(s))
	})
}

func (b *Bus) send(kind string, to address.Address, command string, size int, do func(transport.Collaborator) error) bool {
	_, span := b.tracer.StartSendSpan(context.Background(), telemetry.SendSpanOptions{
		Kind:    kind,
		To:      to.String(),
		Command: command,
		Size:    size,
	})

	t, err := b.acquire("send")
	if err == nil {
		err = do(t)
	}

	telemetry.EndSpan(span, err)
	b.metrics.observeSend(kind, err)
	b.log.SendResult(kind, to.String(), command, err)
	return err == nil
}

// Shutdown stops the transport. Only the first call has an effect. A bus
// shut down before first use never constructs a transport.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.closed.Store(true)
		// Waits out a construction already in progress.
		b.ensure()

		if b.transport == nil {
			b.log.Info("bus_shutdown", map[string]interface{}{"constructed": false})
			return
		}
		if err := b.transport.Shutdown(); err != nil {
			b.log.Warn("transport_shutdown_failed", map[string]interface{}{"error": err.Error()})
		}

		b.mu.Lock()
		b.regs = make(map[string]*registration)
		b.metrics.HandlersRegistered.Set(0)
		b.mu.Unlock()

		b.log.Info("bus_shutdown", map[string]interface{}{"constructed": true})
	})
}

// Closed reports whether Shutdown has been called.
func (b *Bus) Closed() bool {
	return b.closed.Load()
}
