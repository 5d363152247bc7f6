// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer JarvisLogger with contextual
// helpers (session, component) and a provider call helper.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents different logging levels.
// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config / flag value ("debug", "info", "warn",
// "warning", "error") into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface for jarvis.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// JarvisLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It should be cheap to copy via With* methods.
type JarvisLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	sessionID string
}

// LoggerConfig configures construction of a JarvisLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	SessionID   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline text info level configuration
// writing to stderr.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "text", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a JarvisLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *JarvisLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &JarvisLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component, sessionID: cfg.SessionID}
}

// FileWriter returns a rotating log file sink: a file last written on an
// earlier day is rotated when the writer is created, files are also rotated
// every 10 MB, and old files are kept for 7 days.
func FileWriter(path string) io.WriteCloser {
	lj := &lumberjack.Logger{
		Filename:  path,
		MaxSize:   10,
		MaxAge:    7,
		LocalTime: true,
	}
	if info, err := os.Stat(path); err == nil && !sameDay(info.ModTime(), time.Now()) {
		// a failed rotation keeps appending to the old file
		_ = lj.Rotate()
	}
	return lj
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *JarvisLogger) clone() *JarvisLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *JarvisLogger) WithContext(key string, value any) *JarvisLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (session, factory, openai, ...).
func (l *JarvisLogger) WithComponent(c string) *JarvisLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches the chat session identifier.
func (l *JarvisLogger) WithSession(sid string) *JarvisLogger {
	nl := l.clone()
	nl.sessionID = sid
	return nl
}

func (l *JarvisLogger) buildAttrs() []any {
	attrs := make([]any, 0, len(l.context)+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *JarvisLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := append(l.buildAttrs(), args...)
	l.logger.Log(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level. Args are slog style key/value pairs.
func (l *JarvisLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *JarvisLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *JarvisLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *JarvisLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// ErrorWithStack logs an error plus a runtime stack snapshot.
func (l *JarvisLogger) ErrorWithStack(err error, msg string, args ...any) {
	if l.level > LogLevelError {
		return
	}
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	attrs := append(l.buildAttrs(),
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("stack_trace", string(stack[:n])),
	)
	attrs = append(attrs, args...)
	l.logger.Log(context.Background(), slog.LevelError, msg, attrs...)
}

// LogProviderCall records provider call latency, fragment count and success.
func (l *JarvisLogger) LogProviderCall(provider, model string, fragments int, dur time.Duration, err error) {
	attrs := append(l.buildAttrs(),
		slog.String("provider", provider),
		slog.String("model", model),
		slog.Int("fragment_count", fragments),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	)
	level := slog.LevelInfo
	msg := "provider call completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "provider call failed"
	}
	if !l.enabled(level) {
		return
	}
	l.logger.Log(context.Background(), level, msg, attrs...)
}

func (l *JarvisLogger) enabled(level slog.Level) bool {
	return level >= slogLevel(l.level)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *JarvisLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Debug("operation completed", "operation", op, "duration", time.Since(start)) }
}

// ForComponent tags l with a component name when it supports it and returns
// l unchanged otherwise.
func ForComponent(l Logger, c string) Logger {
	if jl, ok := l.(*JarvisLogger); ok {
		return jl.WithComponent(c)
	}
	return l
}

// ProviderCall records a finished provider call. Loggers without
// LogProviderCall get an equivalent debug record.
func ProviderCall(l Logger, provider, model string, fragments int, dur time.Duration, err error) {
	if cl, ok := l.(interface {
		LogProviderCall(string, string, int, time.Duration, error)
	}); ok {
		cl.LogProviderCall(provider, model, fragments, dur, err)
		return
	}
	args := []any{"provider", provider, "model", model, "fragment_count", fragments, "duration", dur, "success", err == nil}
	if err != nil {
		l.Error("provider call failed", append(args, "error", err)...)
		return
	}
	l.Debug("provider call completed", args...)
}

// Stack logs err with a stack trace when l supports it.
func Stack(l Logger, err error, msg string, args ...any) {
	if sl, ok := l.(interface {
		ErrorWithStack(error, string, ...any)
	}); ok {
		sl.ErrorWithStack(err, msg, args...)
		return
	}
	l.Error(msg, append(args, "error", err)...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new JarvisLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *JarvisLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}
