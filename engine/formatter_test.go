package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestConsoleFormatter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	f := NewConsoleFormatterWithWriter(&buf)

	f.PrintNodeStart("n1", "telegram.send")
	f.PrintNodeOutput("n1", map[string]any{"sent": true, "chat_id": "42"})
	f.PrintNodeError("n2", errors.New("boom"))
	f.PrintExecutionDone("exec_1", "failed", errors.New("boom"))
	f.PrintExecutionDone("exec_2", "completed", nil)

	out := buf.String()
	require.Contains(t, out, "n1")
	require.Contains(t, out, "telegram.send")
	require.Contains(t, out, "chat_id: 42")
	require.Contains(t, out, "boom")
	require.Contains(t, out, "exec_1")
	require.Contains(t, out, "completed")
}

func TestPathStateCopy(t *testing.T) {
	state := &PathState{
		ID:       "main",
		Status:   PathStatusRunning,
		NodesRun: []string{"a"},
	}
	copied := state.Copy()
	copied.NodesRun = append(copied.NodesRun, "b")
	copied.Status = PathStatusCompleted

	require.Equal(t, []string{"a"}, state.NodesRun)
	require.Equal(t, PathStatusRunning, state.Status)
}
