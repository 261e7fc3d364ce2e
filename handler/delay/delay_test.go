package delay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayflow-ai/relay"
)

func TestExecutePassesInputThrough(t *testing.T) {
	h := New()
	result, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"seconds": 0.01},
		Input:  map[string]any{"text": "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "hi", result.Data["text"])
	require.Equal(t, 0.01, result.Data["delayed_seconds"])
}

func TestExecuteAcceptsIntSeconds(t *testing.T) {
	h := New()
	result, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"seconds": 0},
	})
	require.NoError(t, err)
	require.Equal(t, float64(0), result.Data["delayed_seconds"])
}

func TestExecuteValidation(t *testing.T) {
	h := New()

	_, err := h.Execute(context.Background(), &relay.HandlerRequest{NodeID: "n1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-negative seconds")

	_, err = h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"seconds": -1.0},
	})
	require.Error(t, err)

	_, err = h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"seconds": 600.0},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum")
}

func TestExecuteCancellation(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := h.Execute(ctx, &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"seconds": 30.0},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
}
