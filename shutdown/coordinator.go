package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
)

// Coordinator runs registered steps phase by phase, exactly once.
type Coordinator struct {
	config Config
	log    *logging.Logger

	mu    sync.Mutex
	steps []step

	once   sync.Once
	done   chan struct{}
	err    error
	result *Result
}

// NewCoordinator creates a coordinator.
func NewCoordinator(config Config) *Coordinator {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	log := config.Logger
	if log == nil {
		log = logging.Nop()
	}

	return &Coordinator{
		config: config,
		log:    log.WithComponent("shutdown"),
		done:   make(chan struct{}),
	}
}

// Register adds a step at DefaultPhase.
func (c *Coordinator) Register(name string, h Handler) {
	c.RegisterWithPhase(name, h, DefaultPhase)
}

// RegisterWithPhase adds a step. Steps in the same phase run concurrently.
// Steps registered after Shutdown started are ignored.
func (c *Coordinator) RegisterWithPhase(name string, h Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{name: name, handler: h, phase: phase})
}

// RegisterFunc registers fn at DefaultPhase.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context) error) {
	c.Register(name, Func(fn))
}

// RegisterFuncWithPhase registers fn at phase.
func (c *Coordinator) RegisterFuncWithPhase(name string, fn func(ctx context.Context) error, phase int) {
	c.RegisterWithPhase(name, Func(fn), phase)
}

// Shutdown runs every step. Only the first call does work; every call
// blocks until that run finishes and returns its error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		start := time.Now()
		c.log.Info("shutdown_started")

		c.result = c.run(ctx)
		c.result.TotalDuration = time.Since(start)
		c.err = c.result.Err

		fields := map[string]interface{}{"duration": c.result.TotalDuration.String()}
		if c.err != nil {
			fields["error"] = c.err.Error()
			c.log.Warn("shutdown_finished", fields)
		} else {
			c.log.Info("shutdown_finished", fields)
		}
		close(c.done)
	})

	<-c.done
	return c.err
}

// ShutdownWithTimeout runs Shutdown bounded by timeout, or the configured
// timeout when timeout is zero.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals shuts down on the first SIGINT or SIGTERM. The returned
// func stops listening.
func (c *Coordinator) HandleSignals() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			c.log.Info("signal_received", map[string]interface{}{"signal": sig.String()})
			_ = c.ShutdownWithTimeout(0)
		case <-quit:
		case <-c.done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}

// Done is closed when shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error. Only meaningful after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Result returns the per-step outcome, or nil before Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) *Result {
	c.mu.Lock()
	steps := make([]step, len(c.steps))
	copy(steps, c.steps)
	c.mu.Unlock()

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].phase < steps[j].phase
	})

	result := &Result{Steps: make([]StepResult, 0, len(steps))}
	var failed []string

	for _, group := range groupByPhase(steps) {
		if ctx.Err() != nil {
			result.Err = ErrTimeout
			return result
		}

		stepResults := c.runPhase(ctx, group)
		result.Steps = append(result.Steps, stepResults...)

		for _, sr := range stepResults {
			if sr.Err != nil {
				failed = append(failed, sr.Name)
			}
		}
		if len(failed) > 0 && !c.config.ContinueOnError {
			break
		}
	}

	if len(failed) > 0 {
		result.Err = errors.New(errors.CodeInternal, "failed steps: "+strings.Join(failed, ", "),
			errors.WithOp("shutdown"), errors.WithCause(ErrHandlerFailed))
	}
	return result
}

func (c *Coordinator) runPhase(ctx context.Context, group []step) []StepResult {
	results := make([]StepResult, len(group))
	var wg sync.WaitGroup

	for i, s := range group {
		wg.Add(1)
		go func(idx int, s step) {
			defer wg.Done()

			start := time.Now()
			err := s.handler.OnShutdown(ctx)
			sr := StepResult{
				Name:     s.name,
				Phase:    s.phase,
				Duration: time.Since(start),
				Err:      err,
			}
			results[idx] = sr

			c.log.PhaseComplete(sr.Name, sr.Phase, sr.Duration, sr.Err)
			if c.config.OnProgress != nil {
				c.config.OnProgress(sr)
			}
		}(i, s)
	}

	wg.Wait()
	return results
}

// groupByPhase splits steps sorted by phase into per-phase groups.
func groupByPhase(steps []step) [][]step {
	var groups [][]step
	for i := 0; i < len(steps); {
		j := i
		for j < len(steps) && steps[j].phase == steps[i].phase {
			j++
		}
		groups = append(groups, steps[i:j])
		i = j
	}
	return groups
}
