package slogger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ConsoleLogger implements Logger over slog with colorized terminal output.
type ConsoleLogger struct {
	logger *slog.Logger
}

// New returns a ConsoleLogger writing to stderr at the given level. Color is
// disabled automatically when stderr is not a terminal.
func New(level LogLevel) *ConsoleLogger {
	return NewWithWriter(os.Stderr, level, isatty.IsTerminal(os.Stderr.Fd()))
}

// NewWithWriter returns a ConsoleLogger writing to w.
func NewWithWriter(w io.Writer, level LogLevel, color bool) *ConsoleLogger {
	handler := tint.NewHandler(w, &tint.Options{
		NoColor:    !color,
		Level:      slog.Level(level),
		TimeFormat: time.Kitchen,
	})
	return &ConsoleLogger{logger: slog.New(handler)}
}

func (l *ConsoleLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *ConsoleLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *ConsoleLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *ConsoleLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *ConsoleLogger) With(keysAndValues ...any) Logger {
	return &ConsoleLogger{logger: l.logger.With(keysAndValues...)}
}

// DevNullLogger implements Logger and discards everything.
type DevNullLogger struct{}

// NewDevNullLogger returns a logger that does nothing.
func NewDevNullLogger() *DevNullLogger { return &DevNullLogger{} }

func (l *DevNullLogger) Debug(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) Info(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Warn(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Error(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) With(keysAndValues ...any) Logger       { return l }
