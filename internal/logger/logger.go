// Package logger provides a small logging interface for crmon components.
// Packages log debug, info, warn, and error messages through Logger without
// depending on the zerolog backend directly.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Config controls the process-wide backend.
type Config struct {
	Level string // debug, info, warn, error
	JSON  bool
	// File, when set, sends output to a rotated log file instead of Output.
	File   string
	Output io.Writer
}

var (
	baseMu sync.RWMutex
	base   = newBase(Config{})
)

// Init configures the backend used by every logger created with New.
// CRMON_DEBUG forces debug level regardless of cfg.Level.
func Init(cfg Config) {
	l := newBase(cfg)
	baseMu.Lock()
	base = l
	baseMu.Unlock()
}

func newBase(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if os.Getenv("CRMON_DEBUG") != "" {
		level = zerolog.DebugLevel
	}

	out := cfg.Output
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20,
			MaxBackups: 3,
			MaxAge:     14,
		}
	}
	if out == nil {
		out = os.Stderr
	}

	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// zeroLogger implements Logger on top of the configured zerolog backend.
type zeroLogger struct {
	component string
	fields    map[string]string
}

// New returns a logger tagged with a component field (e.g. "poll", "store").
// The backend is resolved on every call so Init may run after New.
func New(component string) Logger {
	return &zeroLogger{component: component}
}

// With returns a child logger carrying an extra string field.
func With(l Logger, key, value string) Logger {
	zl, ok := l.(*zeroLogger)
	if !ok {
		return l
	}
	fields := make(map[string]string, len(zl.fields)+1)
	for k, v := range zl.fields {
		fields[k] = v
	}
	fields[key] = value
	return &zeroLogger{component: zl.component, fields: fields}
}

func (l *zeroLogger) event(level zerolog.Level) *zerolog.Event {
	baseMu.RLock()
	b := base
	baseMu.RUnlock()

	e := b.WithLevel(level)
	if e == nil {
		return nil
	}
	if l.component != "" {
		e = e.Str("component", l.component)
	}
	for k, v := range l.fields {
		e = e.Str(k, v)
	}
	return e
}

func (l *zeroLogger) log(level zerolog.Level, format string, args []interface{}) {
	if e := l.event(level); e != nil {
		e.Msgf(format, args...)
	}
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	l.log(zerolog.DebugLevel, format, args)
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.log(zerolog.InfoLevel, format, args)
}

func (l *zeroLogger) Warn(format string, args ...interface{}) {
	l.log(zerolog.WarnLevel, format, args)
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.log(zerolog.ErrorLevel, format, args)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Safe for use from poll goroutines.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args) }

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains returns true if any message at level contains substr.
func (l *BufferLogger) Contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level && strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.Messages))
	copy(out, l.Messages)
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

var defaultLogger Logger = New("")

// Default returns the default logger for the package.
func Default() Logger {
	return defaultLogger
}

// SetDefault sets the default logger for the package.
func SetDefault(l Logger) {
	defaultLogger = l
}
