package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides a structured logging interface
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new logger instance writing text to stdout at info level
func NewLogger() *Logger {
	return New(os.Stdout, "info", "text")
}

// New creates a logger with the given output, level (debug, info, warn, error) and format (json, text)
func New(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{logger: slog.New(handler)}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return New(io.Discard, "error", "text")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger that always includes the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(keysAndValues...)}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
	os.Exit(1)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return nil
}

// CronLogger adapts the logger to the cron.Logger interface
func (l *Logger) CronLogger() *CronAdapter {
	return &CronAdapter{log: l}
}

// CronAdapter satisfies github.com/robfig/cron/v3.Logger
type CronAdapter struct {
	log *Logger
}

// Info logs routine cron messages at debug level
func (a *CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Debug("cron: "+msg, keysAndValues...)
}

// Error logs cron errors, including recovered panics
func (a *CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
