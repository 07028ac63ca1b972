package heartbeat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/logging"
)

// Monitor tracks pings arriving at the master and reports peers that go quiet.
type Monitor struct {
	bus           Registrar
	command       string
	timeout       time.Duration
	checkInterval time.Duration
	clock         clockwork.Clock
	log           *logging.Logger

	mu       sync.RWMutex
	lastSeen map[address.Address]time.Time
	reported map[address.Address]bool // already-reported dead peers
	deadCBs  []func(address.Address)

	runMu   sync.Mutex
	running bool
	cancel  func()
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defaults := DefaultMonitorConfig()

	if cfg.Command == "" {
		cfg.Command = defaults.Command
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaults.CheckInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	return &Monitor{
		bus:           cfg.Bus,
		command:       cfg.Command,
		timeout:       cfg.Timeout,
		checkInterval: cfg.CheckInterval,
		clock:         cfg.Clock,
		log:           cfg.Logger.WithComponent("monitor"),
		lastSeen:      make(map[address.Address]time.Time),
		reported:      make(map[address.Address]bool),
	}, nil
}

// Start registers the heartbeat command and starts the dead peer checker.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	m.cancel = m.bus.On(m.command, func(from address.Address, _ string) {
		m.Observe(from)
	})
	m.stopCh, m.doneCh = stop, done
	m.running = true

	go m.run(ctx, stop, done)
	return nil
}

func (m *Monitor) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	for {
		timer := m.clock.NewTimer(m.checkInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.Chan():
			m.CheckDead()
		}
	}
}

// Observe records a ping from peer.
func (m *Monitor) Observe(peer address.Address) {
	now := m.clock.Now()

	m.mu.Lock()
	_, known := m.lastSeen[peer]
	revived := m.reported[peer]
	m.lastSeen[peer] = now
	delete(m.reported, peer) // Peer is alive, clear dead report
	m.mu.Unlock()

	switch {
	case !known:
		m.log.Info("peer_joined", map[string]interface{}{"peer": peer.String()})
	case revived:
		m.log.Info("peer_revived", map[string]interface{}{"peer": peer.String()})
	}
}

// CheckDead reports peers silent for longer than the timeout. Each death is
// reported once; a later ping re-arms the report. Returns the newly dead peers.
func (m *Monitor) CheckDead() []address.Address {
	now := m.clock.Now()
	var dead []address.Address

	m.mu.Lock()
	for peer, seen := range m.lastSeen {
		if now.Sub(seen) > m.timeout && !m.reported[peer] {
			m.reported[peer] = true
			dead = append(dead, peer)
		}
	}
	callbacks := make([]func(address.Address), len(m.deadCBs))
	copy(callbacks, m.deadCBs)
	m.mu.Unlock()

	sortAddresses(dead)
	for _, peer := range dead {
		m.log.Warn("peer_dead", map[string]interface{}{
			"peer":    peer.String(),
			"timeout": m.timeout.String(),
		})
		for _, cb := range callbacks {
			cb(peer)
		}
	}
	return dead
}

// IsAlive reports whether peer pinged within the timeout.
func (m *Monitor) IsAlive(peer address.Address) bool {
	m.mu.RLock()
	seen, ok := m.lastSeen[peer]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	return m.clock.Now().Sub(seen) <= m.timeout
}

// LastSeen returns the time of the last ping from peer.
func (m *Monitor) LastSeen(peer address.Address) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen, ok := m.lastSeen[peer]
	return seen, ok
}

// Peers returns every peer that has pinged, sorted by address.
func (m *Monitor) Peers() []address.Address {
	m.mu.RLock()
	peers := make([]address.Address, 0, len(m.lastSeen))
	for peer := range m.lastSeen {
		peers = append(peers, peer)
	}
	m.mu.RUnlock()

	sortAddresses(peers)
	return peers
}

// OnDead registers a callback for when a peer is presumed dead.
func (m *Monitor) OnDead(callback func(peer address.Address)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, callback)
	m.mu.Unlock()
}

// Stop unregisters the command and stops the checker.
func (m *Monitor) Stop() error {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return ErrNotStarted
	}
	m.running = false
	cancel, stop, done := m.cancel, m.stopCh, m.doneCh
	m.runMu.Unlock()

	cancel()
	close(stop)
	<-done
	return nil
}

func sortAddresses(addrs []address.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].String() < addrs[j].String()
	})
}
