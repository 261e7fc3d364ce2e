// Package delay implements the "delay" node: a context-aware pause between
// nodes, used to pace outbound messages.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/relayflow-ai/relay"
)

const NodeType = "delay"

// MaxDelay bounds a single delay node.
const MaxDelay = 5 * time.Minute

// Handler pauses the path it runs on.
type Handler struct{}

// New returns a Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string { return NodeType }

// Execute sleeps for the configured "seconds", passing the input through
// unchanged. Cancellation aborts the wait.
func (h *Handler) Execute(ctx context.Context, req *relay.HandlerRequest) (*relay.HandlerResult, error) {
	seconds, ok := req.Config["seconds"].(float64)
	if !ok {
		if n, isInt := req.Config["seconds"].(int); isInt {
			seconds, ok = float64(n), true
		}
	}
	if !ok || seconds < 0 {
		return nil, fmt.Errorf("delay node %q needs a non-negative seconds value", req.NodeID)
	}
	d := time.Duration(seconds * float64(time.Second))
	if d > MaxDelay {
		return nil, fmt.Errorf("delay node %q exceeds the %s maximum", req.NodeID, MaxDelay)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d):
	}

	output := make(map[string]any, len(req.Input)+1)
	for k, v := range req.Input {
		output[k] = v
	}
	output["delayed_seconds"] = seconds
	return &relay.HandlerResult{Data: output}, nil
}
