package slogger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	require.Equal(t, LevelDebug, LevelFromString("debug"))
	require.Equal(t, LevelInfo, LevelFromString("INFO"))
	require.Equal(t, LevelWarn, LevelFromString(" warning "))
	require.Equal(t, LevelError, LevelFromString("error"))
	require.Equal(t, DefaultLogLevel, LevelFromString("verbose"))
	require.Equal(t, DefaultLogLevel, LevelFromString(""))
}

func TestConsoleLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug, false)

	logger.Debug("debug line", "k", "v")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line", "error", "boom")

	out := buf.String()
	require.Contains(t, out, "debug line")
	require.Contains(t, out, "info line")
	require.Contains(t, out, "warn line")
	require.Contains(t, out, "error line")
	require.Contains(t, out, "boom")
}

func TestConsoleLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn, false)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "visible")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, false).With("component", "queue")
	logger.Info("started")
	require.Contains(t, buf.String(), "component=queue")
}

func TestContextLogger(t *testing.T) {
	logger := NewDevNullLogger()
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, Logger(logger), Ctx(ctx))

	require.Equal(t, DefaultLogger, Ctx(context.Background()))
	require.Equal(t, DefaultLogger, Ctx(nil))
}
