package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Logger receives dispatch and shutdown events. Default: discard.
	Logger *logging.Logger
}

// Manager implements Collaborator over a Link.
type Manager struct {
	link Link
	log  *logging.Logger

	mu       sync.RWMutex
	handlers map[string]*registration

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
	cancel       context.CancelFunc
	done         chan struct{}
}

type registration struct {
	handler Handler
}

var _ Collaborator = (*Manager)(nil)

// NewManager wraps link and starts its receive loop.
func NewManager(link Link, cfg ManagerConfig) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		link:     link,
		log:      log.WithComponent("transport").With("local", link.Addr().String()),
		handlers: make(map[string]*registration),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go m.run(ctx)
	return m
}

// Addr returns the local endpoint address.
func (m *Manager) Addr() address.Address {
	return m.link.Addr()
}

// On registers h for command, replacing any previous handler.
func (m *Manager) On(command string, h Handler) (func(), error) {
	if command == "" {
		return nil, errors.InvalidInput("command must not be empty", errors.WithOp("register"))
	}
	if h == nil {
		return nil, errors.InvalidInput("handler must not be nil", errors.WithOp("register"))
	}

	reg := &registration{handler: h}

	m.mu.Lock()
	_, replaced := m.handlers[command]
	m.handlers[command] = reg
	m.mu.Unlock()

	if replaced {
		m.log.Debug("handler_replaced", map[string]interface{}{"command": command})
	}

	return func() {
		m.mu.Lock()
		if m.handlers[command] == reg {
			delete(m.handlers, command)
		}
		m.mu.Unlock()
	}, nil
}

// Handlers returns the number of registered commands.
func (m *Manager) Handlers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers)
}

// SendText frames command and data and sends them to the peer. A receiving
// Manager splits the command at the first space or newline, so only those
// separators round-trip; any other sep ends up inside the command.
func (m *Manager) SendText(to address.Address, command, data string, sep byte) error {
	if command == "" {
		return errors.InvalidInput("command must not be empty", errors.WithOp("send"))
	}
	return m.send(to, EncodeText(command, data, sep))
}

// SendBytes sends data to the peer as-is.
func (m *Manager) SendBytes(to address.Address, data []byte) error {
	return m.send(to, data)
}

func (m *Manager) send(to address.Address, frame []byte) error {
	if m.closed.Load() {
		return errors.Closed("send")
	}
	if to.IsZero() {
		return errors.New(errors.CodeInvalidAddress, "empty destination", errors.WithOp("send"))
	}
	return m.link.Send(to, frame)
}

// Deliver dispatches one inbound frame as if it arrived from the link.
// It reports whether a handler was invoked.
func (m *Manager) Deliver(from address.Address, frame []byte) bool {
	command, data, ok := DecodeText(frame)
	if !ok {
		m.log.Debug("raw_frame_dropped", map[string]interface{}{
			"from": from.String(),
			"size": len(frame),
		})
		return false
	}

	m.mu.RLock()
	reg := m.handlers[command]
	m.mu.RUnlock()

	if reg == nil {
		m.log.Debug("unhandled_command", map[string]interface{}{
			"from":    from.String(),
			"command": command,
		})
		return false
	}

	m.invoke(reg.handler, command, from, data)
	return true
}

func (m *Manager) invoke(h Handler, command string, from address.Address, data string) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New(errors.CodePanic, fmt.Sprintf("handler panic: %v", r), errors.WithOp(command))
			m.log.Error("handler_panic", map[string]interface{}{
				"command": command,
				"from":    from.String(),
				"error":   err.Error(),
			})
		}
	}()
	h(from, data)
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		dg, ok := m.link.Recv(ctx)
		if !ok {
			return
		}
		m.Deliver(dg.From, dg.Data)
	}
}

// Shutdown closes the link and stops the receive loop. It does not wait for
// a running handler; use Done for that.
func (m *Manager) Shutdown() error {
	m.shutdownOnce.Do(func() {
		m.closed.Store(true)
		m.cancel()
		if err := m.link.Close(); err != nil {
			m.shutdownErr = errors.Wrap(err, errors.CodeNetwork, "close link")
		}
		m.log.Info("transport_shutdown")
	})
	return m.shutdownErr
}

// Done is closed once the receive loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
