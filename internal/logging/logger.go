// Package logging provides structured logging for the cowork core.
// It wraps Go's log/slog package to provide JSON-formatted logs carrying
// session, user and component context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the file written inside the log directory.
const LogFileName = "cowork.log"

// Logger provides structured logging with context propagation.
// It is safe for concurrent use. Child loggers share the level, so
// SetLevel on any of them affects the whole tree.
type Logger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	closer *closer
	attrs  []slog.Attr
}

// closer owns the underlying writer shared by a logger tree.
type closer struct {
	mu sync.Mutex
	w  io.Closer
}

// Option configures NewLogger.
type Option func(*loggerOptions)

type loggerOptions struct {
	rotation RotationConfig
}

// WithRotation enables size-based rotation of the log file.
func WithRotation(cfg RotationConfig) Option {
	return func(o *loggerOptions) { o.rotation = cfg }
}

// NewLogger creates a Logger that writes JSON lines to {logDir}/cowork.log.
// If logDir is empty, logs go to stderr.
func NewLogger(logDir string, level string, opts ...Option) (*Logger, error) {
	o := loggerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if logDir == "" {
		return NewWriterLogger(os.Stderr, level), nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rw, err := NewRotatingWriter(filepath.Join(logDir, LogFileName), o.rotation)
	if err != nil {
		return nil, err
	}

	l := NewWriterLogger(rw, level)
	l.closer = &closer{w: rw}
	return l, nil
}

// NewWriterLogger creates a Logger writing JSON lines to w.
func NewWriterLogger(w io.Writer, level string) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(parseLevel(level))

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})
	return &Logger{
		logger: slog.New(handler),
		level:  lv,
		closer: &closer{},
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the minimum level for this logger and all of its children.
func (l *Logger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

// Level returns the current level name.
func (l *Logger) Level() string {
	return ParseLevel(l.level.Level().String())
}

// WithSession returns a child Logger tagging entries with the session ID.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.withAttr(slog.String("session_id", sessionID))
}

// WithUser returns a child Logger tagging entries with the acting user.
func (l *Logger) WithUser(userID string) *Logger {
	return l.withAttr(slog.String("user_id", userID))
}

// WithComponent returns a child Logger tagging entries with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.withAttr(slog.String("component", name))
}

// With returns a child Logger with arbitrary key-value attributes.
// Non-string keys are skipped.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	attrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	attrs = append(attrs, l.attrs...)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return l.derive(attrs)
}

func (l *Logger) withAttr(attr slog.Attr) *Logger {
	attrs := make([]slog.Attr, len(l.attrs)+1)
	copy(attrs, l.attrs)
	attrs[len(l.attrs)] = attr
	return l.derive(attrs)
}

func (l *Logger) derive(attrs []slog.Attr) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		closer: l.closer,
		attrs:  attrs,
	}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	allArgs := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr.Key, attr.Value.Any())
	}
	allArgs = append(allArgs, args...)

	l.logger.Log(context.Background(), level, msg, allArgs...)
}

// Close flushes and closes the log file. It is a no-op for loggers that
// write to stderr or a caller-owned writer.
func (l *Logger) Close() error {
	l.closer.mu.Lock()
	defer l.closer.mu.Unlock()

	if l.closer.w == nil {
		return nil
	}
	err := l.closer.w.Close()
	l.closer.w = nil
	return err
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return NewWriterLogger(io.Discard, LevelError)
}

// ParseLevel normalizes a level name. Returns LevelInfo if not recognized.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
