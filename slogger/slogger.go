// Package slogger provides structured logging for the engine and its
// handlers. The Logger interface is deliberately small so that tests can
// inject a no-op implementation.
package slogger

import (
	"context"
	"log/slog"
	"strings"
)

// Logger is the logging interface used throughout the repository. It supports
// structured key-value logging and is compatible with slog-style libraries.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a Logger that includes the given key-value pairs in
	// every record it emits.
	With(keysAndValues ...any) Logger
}

// LogLevel is the minimum level a logger emits.
type LogLevel slog.Level

const (
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LevelError LogLevel = LogLevel(slog.LevelError)
)

// DefaultLogLevel applies when no level is configured.
var DefaultLogLevel = LevelInfo

// DefaultLogger is used by components that were not given a logger.
var DefaultLogger Logger = NewDevNullLogger()

// LevelFromString converts a level name to a LogLevel. Unrecognized names
// fall back to DefaultLogLevel.
func LevelFromString(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return DefaultLogLevel
}

type contextKey string

const loggerKey contextKey = "relay.logger"

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns the logger stored in the context, or DefaultLogger.
func Ctx(ctx context.Context) Logger {
	if ctx == nil {
		return DefaultLogger
	}
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return DefaultLogger
}
