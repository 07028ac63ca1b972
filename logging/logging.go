// Package logging provides leveled component logging for netbus.
// Output is produced by zerolog; the API keeps the component + fields shape
// used throughout the codebase so call sites never touch zerolog directly.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "NETBUS_LOG_LEVEL"

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelOff   Level = "OFF"
)

var zerologLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
	LevelOff:   zerolog.Disabled,
}

// ParseLevel accepts debug, info, warn/warning, error and off/none/disabled,
// case-insensitively.
func ParseLevel(raw string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "off", "none", "disabled":
		return LevelOff, true
	default:
		return LevelInfo, false
	}
}

// Config controls logger construction.
type Config struct {
	// Output defaults to stdout.
	Output io.Writer

	// Level is the minimum level written. Default: INFO.
	Level Level

	// Console renders human-readable lines instead of JSON.
	Console bool
}

// Logger writes structured log lines tagged with a component.
type Logger struct {
	zl        zerolog.Logger
	component string
}

// New creates a console logger on stdout at INFO, honoring NETBUS_LOG_LEVEL.
func New() *Logger {
	return NewWithConfig(Config{Console: true})
}

// NewWithConfig creates a logger from cfg. NETBUS_LOG_LEVEL wins over cfg.Level.
func NewWithConfig(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := cfg.Level
	if level == "" {
		level = LevelInfo
	}
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	zl := zerolog.New(out).With().Timestamp().Logger().Level(zerologLevels[level])
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl:        l.zl.With().Str("component", component).Logger(),
		component: component,
	}
}

// With returns a new logger that adds key=value to every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		zl:        l.zl.With().Interface(key, value).Logger(),
		component: l.component,
	}
}

// Component returns the component name, if any.
func (l *Logger) Component() string {
	return l.component
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Debug(), msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Info(), msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Warn(), msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Error(), msg, fields...)
}

func (l *Logger) log(ev *zerolog.Event, msg string, fields ...map[string]interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 && fields[0] != nil {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// --- Event helpers ---

// SendResult logs the outcome of one outbound send.
// Failures are warnings, successes are debug noise.
func (l *Logger) SendResult(kind, to, command string, err error) {
	fields := map[string]interface{}{
		"kind": kind,
		"to":   to,
	}
	if command != "" {
		fields["command"] = command
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Warn("send_failed", fields)
		return
	}
	l.Debug("send_ok", fields)
}

// StateChange logs a lifecycle transition.
func (l *Logger) StateChange(from, to string) {
	l.Info("state_change", map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// PhaseComplete logs a finished shutdown phase step.
func (l *Logger) PhaseComplete(name string, phase int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"step":     name,
		"phase":    phase,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("shutdown_step_failed", fields)
		return
	}
	l.Info("shutdown_step_complete", fields)
}
