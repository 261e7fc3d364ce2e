// Package relay defines the contracts shared by the workflow engine and the
// node handlers that do its work. A workflow is a directed graph of nodes;
// each node names a handler type and carries an opaque configuration map. The
// engine walks the graph and calls one handler per node, feeding each node's
// output to the nodes downstream of it.
package relay

import "context"

// Handler executes a single node type. Implementations must be safe for
// concurrent use: one handler instance serves every node of its type across
// all in-flight executions.
type Handler interface {
	// Name returns the node-type tag this handler is registered under.
	Name() string

	// Execute runs the node. A nil error with a non-nil result is success.
	// Handlers report their own failures as errors; they must not panic,
	// although the engine recovers if they do.
	Execute(ctx context.Context, req *HandlerRequest) (*HandlerResult, error)
}

// HandlerRequest is the input to a single node execution.
type HandlerRequest struct {
	// NodeID identifies the node within its workflow.
	NodeID string

	// NodeLabel is the human-readable name given to the node in the builder.
	NodeLabel string

	// Config holds the node's handler-specific parameters (tokens,
	// templates, URLs). Opaque to the engine.
	Config map[string]any

	// Input is the output of the upstream node, or the trigger data in
	// execution format for nodes directly connected to the trigger.
	Input map[string]any

	// WorkflowID and ExecutionID identify the run for logging and tracing.
	WorkflowID  string
	ExecutionID string
}

// HandlerResult is the output of a successful node execution.
type HandlerResult struct {
	// Data becomes the input of downstream nodes.
	Data map[string]any

	// Mock is true when the handler substituted a deterministic mock
	// response because a required credential was missing or a placeholder.
	// Mock results never correspond to a real external effect.
	Mock bool
}

// ConfigString reads a string value from the request config.
func (r *HandlerRequest) ConfigString(key string) string {
	if r.Config == nil {
		return ""
	}
	s, _ := r.Config[key].(string)
	return s
}

// InputString reads a string value from the request input.
func (r *HandlerRequest) InputString(key string) string {
	if r.Input == nil {
		return ""
	}
	switch v := r.Input[key].(type) {
	case string:
		return v
	case nil:
		return ""
	}
	return ""
}
