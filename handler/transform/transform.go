// Package transform implements the "transform" node: small data-shaping
// operations between nodes, so message templates and API payloads can be
// adapted without a custom handler.
package transform

import (
	"context"
	"fmt"
	"strings"

	"dario.cat/mergo"

	"github.com/relayflow-ai/relay"
	"github.com/relayflow-ai/relay/handler"
)

const NodeType = "transform"

// Handler reshapes node input data.
type Handler struct{}

// New returns a Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string { return NodeType }

// Execute applies the configured operation to the input. Config: "op"
// selects the operation:
//
//	pick      keep only the fields named in "fields"
//	omit      drop the fields named in "fields"
//	rename    rename fields per the "mapping" map (old -> new)
//	set       merge the "values" map over the input
//	template  render the "template" string into the field named by "as"
//	uppercase / lowercase  case-fold the string fields named in "fields"
func (h *Handler) Execute(ctx context.Context, req *relay.HandlerRequest) (*relay.HandlerResult, error) {
	op := req.ConfigString("op")
	if op == "" {
		return nil, fmt.Errorf("transform node %q has no op", req.NodeID)
	}

	output := make(map[string]any, len(req.Input))
	for k, v := range req.Input {
		output[k] = v
	}

	switch op {
	case "pick":
		picked := make(map[string]any)
		for _, field := range configFields(req) {
			if v, ok := output[field]; ok {
				picked[field] = v
			}
		}
		output = picked

	case "omit":
		for _, field := range configFields(req) {
			delete(output, field)
		}

	case "rename":
		mapping, ok := req.Config["mapping"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transform node %q rename op needs a mapping", req.NodeID)
		}
		for old, v := range mapping {
			newName, ok := v.(string)
			if !ok || newName == "" {
				return nil, fmt.Errorf("transform node %q mapping for %q is not a string", req.NodeID, old)
			}
			if value, exists := output[old]; exists {
				output[newName] = value
				delete(output, old)
			}
		}

	case "set":
		values, ok := req.Config["values"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transform node %q set op needs values", req.NodeID)
		}
		if err := mergo.Merge(&output, values, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("transform node %q merge failed: %w", req.NodeID, err)
		}

	case "template":
		as := req.ConfigString("as")
		if as == "" {
			as = "text"
		}
		output[as] = handler.Interpolate(req.ConfigString("template"), req.Input)

	case "uppercase", "lowercase":
		fold := strings.ToUpper
		if op == "lowercase" {
			fold = strings.ToLower
		}
		for _, field := range configFields(req) {
			if s, ok := output[field].(string); ok {
				output[field] = fold(s)
			}
		}

	default:
		return nil, fmt.Errorf("transform node %q has unknown op %q", req.NodeID, op)
	}

	return &relay.HandlerResult{Data: output}, nil
}

func configFields(req *relay.HandlerRequest) []string {
	raw, ok := req.Config["fields"].([]any)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			fields = append(fields, s)
		}
	}
	return fields
}
