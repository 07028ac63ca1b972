package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
	"github.com/vinayprograms/netbus/telemetry"
)

// Sender pings the master at a fixed interval until stopped.
type Sender struct {
	bus      Bus
	master   address.Address
	interval time.Duration
	command  string
	clock    clockwork.Clock
	log      *logging.Logger
	tracer   *telemetry.Tracer

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	attempts    atomic.Uint64
	failures    atomic.Uint64
	lastAttempt atomic.Int64
}

// NewSender creates a stopped sender.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defaults := DefaultSenderConfig()

	if cfg.Master.IsZero() {
		cfg.Master = defaults.Master
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Command == "" {
		cfg.Command = defaults.Command
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.GetTracer()
	}

	return &Sender{
		bus:      cfg.Bus,
		master:   cfg.Master,
		interval: cfg.Interval,
		command:  cfg.Command,
		clock:    cfg.Clock,
		log:      cfg.Logger.WithComponent("heartbeat").With("master", cfg.Master.String()),
		tracer:   cfg.Tracer,
	}, nil
}

// Start begins pinging. Cancelling ctx stops the loop like Stop does.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopCh, s.doneCh = stop, done
	s.setState(StateRunning)

	go s.run(ctx, stop, done)
	return nil
}

func (s *Sender) run(ctx context.Context, stop, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.doneCh == done && s.state == StateRunning {
			s.setState(StateStopped)
		}
		s.mu.Unlock()
		close(done)
	}()

	for {
		timer := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.Chan():
		}

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		s.beat(ctx)
	}
}

// beat sends one ping. A failed send is counted and otherwise ignored.
func (s *Sender) beat(ctx context.Context) {
	seq := s.attempts.Add(1)
	s.lastAttempt.Store(s.clock.Now().UnixNano())

	_, span := s.tracer.StartHeartbeatSpan(ctx, s.master.String(), seq)
	var err error
	if !s.bus.Send(s.master, s.command, "") {
		s.failures.Add(1)
		err = errors.Unreachable(s.master.String(), errors.WithOp("heartbeat"))
		s.log.Debug("heartbeat_send_failed", map[string]interface{}{"seq": seq})
	}
	telemetry.EndSpan(span, err)
}

// Stop stops pinging and waits for the loop to exit. A send already in
// progress completes first. Stop on a sender that is not running does nothing.
func (s *Sender) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.setState(StateStopping)
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	s.setState(StateStopped)
	s.mu.Unlock()
	return nil
}

// setState must be called with mu held.
func (s *Sender) setState(next State) {
	if s.state == next {
		return
	}
	s.log.StateChange(s.state.String(), next.String())
	s.state = next
}

// State returns the current lifecycle state.
func (s *Sender) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns send counters.
func (s *Sender) Stats() Stats {
	st := Stats{
		Attempts: s.attempts.Load(),
		Failures: s.failures.Load(),
	}
	if ns := s.lastAttempt.Load(); ns != 0 {
		st.LastAttempt = time.Unix(0, ns)
	}
	return st
}

// Master returns the address pings are sent to.
func (s *Sender) Master() address.Address {
	return s.master
}

// Interval returns the time between pings.
func (s *Sender) Interval() time.Duration {
	return s.interval
}
