package shutdown

import (
	"context"
	"time"

	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
)

// Common errors.
var (
	// ErrTimeout indicates shutdown did not complete within the deadline.
	ErrTimeout = errors.New(errors.CodeTimeout, "shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more steps failed during shutdown.
	ErrHandlerFailed = errors.New(errors.CodeInternal, "one or more shutdown steps failed")
)

// Phases used by netbus hosts. Lower phases run first.
const (
	// PhaseHeartbeat stops the heartbeat sender.
	PhaseHeartbeat = 10

	// PhaseListeners stops components that still use the bus, such as monitors.
	PhaseListeners = 20

	// PhaseTransport shuts down the command bus and its transport.
	PhaseTransport = 30

	// PhaseTelemetry flushes metrics and trace exporters.
	PhaseTelemetry = 40

	// DefaultPhase is used by Register.
	DefaultPhase = 100
)

// Handler is implemented by components that need ordered shutdown.
type Handler interface {
	// OnShutdown is called once. ctx carries the overall deadline.
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to Handler.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// StepResult is the outcome of one registered step.
type StepResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a whole shutdown.
type Result struct {
	TotalDuration time.Duration
	Steps         []StepResult
	Err           error
}

// Failed reports whether any step failed or the deadline passed.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// FailedSteps returns the names of steps that returned an error.
func (r *Result) FailedSteps() []string {
	var failed []string
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

// Config configures the coordinator.
type Config struct {
	// Timeout bounds ShutdownWithTimeout and signal-triggered shutdown.
	// Default: 30 seconds
	Timeout time.Duration

	// ContinueOnError runs later phases after a failed step.
	// Default: true
	ContinueOnError bool

	// OnProgress is called as each step completes.
	OnProgress func(result StepResult)

	// Logger receives one line per step. Default: discard.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.InvalidInput("shutdown timeout must not be negative")
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
	}
}

type step struct {
	name    string
	handler Handler
	phase   int
}
