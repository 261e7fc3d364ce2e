// Package handler holds the node registry: the mapping from a node-type tag
// to the Handler that executes nodes of that type. The registry is injected
// into the engine at startup; there is no process-wide default.
package handler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/relayflow-ai/relay"
)

// Registry maps node-type tags to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]relay.Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]relay.Handler)}
}

// Register adds a handler under its Name. Registering the same tag twice is
// an error.
func (r *Registry) Register(h relay.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Name()
	if name == "" {
		return fmt.Errorf("handler has an empty name")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for node type %q", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister registers a handler, panicking on error. Intended for
// startup wiring.
func (r *Registry) MustRegister(h relay.Handler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Get returns the handler for a node type.
func (r *Registry) Get(nodeType string) (relay.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[nodeType]
	return h, ok
}

// Types returns all registered node types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
