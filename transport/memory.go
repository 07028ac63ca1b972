package transport

import (
	"context"
	"sync"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
)

// Switch delivers frames between MemoryLinks listening on it.
type Switch struct {
	config Config

	mu    sync.RWMutex
	links map[address.Address]*MemoryLink
}

// NewSwitch creates an empty in-process switch.
func NewSwitch(cfg Config) *Switch {
	return &Switch{
		config: cfg,
		links:  make(map[address.Address]*MemoryLink),
	}
}

// Listen attaches a new link at addr.
func (s *Switch) Listen(addr address.Address) (*MemoryLink, error) {
	if addr.IsZero() {
		return nil, errors.New(errors.CodeInvalidAddress, "empty listen address", errors.WithOp("listen"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[addr]; exists {
		return nil, errors.New(errors.CodeAddressInUse, "address already in use",
			errors.WithOp("listen"), errors.WithAddress(addr.String()))
	}

	l := &MemoryLink{
		sw:     s,
		addr:   addr,
		in:     make(chan Datagram, s.config.inboxSize()),
		closed: make(chan struct{}),
	}
	s.links[addr] = l
	return l, nil
}

// Factory returns a Factory that attaches a Manager at addr on first use.
func (s *Switch) Factory(addr address.Address, cfg ManagerConfig) Factory {
	return func() (Collaborator, error) {
		l, err := s.Listen(addr)
		if err != nil {
			return nil, err
		}
		return NewManager(l, cfg), nil
	}
}

func (s *Switch) lookup(addr address.Address) *MemoryLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.links[addr]
}

func (s *Switch) detach(l *MemoryLink) {
	s.mu.Lock()
	if s.links[l.addr] == l {
		delete(s.links, l.addr)
	}
	s.mu.Unlock()
}

// MemoryLink is a Link attached to a Switch.
type MemoryLink struct {
	sw        *Switch
	addr      address.Address
	in        chan Datagram
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Link = (*MemoryLink)(nil)

// Addr returns the link's address on the switch.
func (l *MemoryLink) Addr() address.Address {
	return l.addr
}

// Send copies frame into the peer's inbox without blocking.
func (l *MemoryLink) Send(to address.Address, frame []byte) error {
	select {
	case <-l.closed:
		return errors.Closed("send")
	default:
	}

	peer := l.sw.lookup(to)
	if peer == nil {
		return errors.Unreachable(to.String(), errors.WithOp("send"))
	}

	data := make([]byte, len(frame))
	copy(data, frame)

	select {
	case <-peer.closed:
		return errors.Unreachable(to.String(), errors.WithOp("send"))
	case peer.in <- Datagram{From: l.addr, Data: data}:
		return nil
	default:
		return errors.New(errors.CodeCapacity, "peer inbox full", errors.WithOp("send"), errors.WithAddress(to.String()))
	}
}

// Recv returns the next inbound frame.
func (l *MemoryLink) Recv(ctx context.Context) (Datagram, bool) {
	select {
	case <-l.closed:
		return Datagram{}, false
	case <-ctx.Done():
		return Datagram{}, false
	case dg := <-l.in:
		return dg, true
	}
}

// Close detaches the link from its switch.
func (l *MemoryLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.sw.detach(l)
	})
	return nil
}
