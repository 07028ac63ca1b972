package heartbeat

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
	"github.com/vinayprograms/netbus/telemetry"
	"github.com/vinayprograms/netbus/transport"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New(errors.CodeInvalidInput, "heartbeat already started")
	ErrNotStarted     = errors.New(errors.CodeInvalidInput, "heartbeat not started")
	ErrInvalidConfig  = errors.New(errors.CodeInvalidInput, "invalid configuration")
)

// DefaultCommand is the command heartbeats carry.
const DefaultCommand = "ping"

// Bus is the send side of the command bus.
type Bus interface {
	Send(to address.Address, command, data string) bool
}

// Registrar is the receive side of the command bus.
type Registrar interface {
	On(command string, cb transport.Handler) func()
}

// State is the sender lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// SenderConfig configures a heartbeat sender.
type SenderConfig struct {
	// Bus carries the pings.
	Bus Bus

	// Master receives the pings.
	// Default: address.Master()
	Master address.Address

	// Interval between pings. The first ping goes out one interval after Start.
	// Default: 5 seconds
	Interval time.Duration

	// Command sent with an empty payload.
	// Default: "ping"
	Command string

	// Clock drives the interval. Default: clockwork.NewRealClock()
	Clock clockwork.Clock

	Logger *logging.Logger
	Tracer *telemetry.Tracer
}

// Validate checks the configuration.
func (c *SenderConfig) Validate() error {
	if c.Bus == nil {
		return errors.New(errors.CodeInvalidInput, "sender needs a bus", errors.WithCause(ErrInvalidConfig))
	}
	if c.Interval < 0 {
		return errors.New(errors.CodeInvalidInput, "interval must not be negative", errors.WithCause(ErrInvalidConfig))
	}
	return nil
}

// DefaultSenderConfig returns configuration with sensible defaults.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Master:   address.Master(),
		Interval: 5 * time.Second,
		Command:  DefaultCommand,
		Clock:    clockwork.NewRealClock(),
	}
}

// Stats counts send attempts since the sender was created.
type Stats struct {
	Attempts    uint64
	Failures    uint64
	LastAttempt time.Time
}

// MonitorConfig configures a heartbeat monitor.
type MonitorConfig struct {
	// Bus receives the pings.
	Bus Registrar

	// Command to watch.
	// Default: "ping"
	Command string

	// Timeout for considering a peer dead.
	// Should be 2-3x the expected heartbeat interval.
	// Default: 15 seconds
	Timeout time.Duration

	// CheckInterval for the dead peer checker.
	// Default: 1 second
	CheckInterval time.Duration

	Clock  clockwork.Clock
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *MonitorConfig) Validate() error {
	if c.Bus == nil {
		return errors.New(errors.CodeInvalidInput, "monitor needs a bus", errors.WithCause(ErrInvalidConfig))
	}
	return nil
}

// DefaultMonitorConfig returns configuration with sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Command:       DefaultCommand,
		Timeout:       15 * time.Second,
		CheckInterval: 1 * time.Second,
		Clock:         clockwork.NewRealClock(),
	}
}
