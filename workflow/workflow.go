// Package workflow defines the workflow graph model: nodes joined by
// directed connections, with one or more trigger nodes originating
// executions. Definitions are exchanged as JSON blobs with the persistence
// layer and as YAML when authored by hand.
package workflow

import "fmt"

// TriggerNodeType tags nodes that originate executions. Trigger nodes are
// never executed by a handler; their output is the standardized trigger data.
const TriggerNodeType = "trigger"

// Node is a single step in a workflow graph.
type Node struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// IsTrigger reports whether the node originates executions.
func (n *Node) IsTrigger() bool {
	return n.Type == TriggerNodeType
}

// Connection is a directed edge between two nodes. Multiple connections out
// of one node fan out: every target runs with the same input.
type Connection struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Workflow is a graph of nodes and connections.
type Workflow struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes       []*Node        `json:"nodes" yaml:"nodes"`
	Connections []*Connection  `json:"connections,omitempty" yaml:"connections,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	graph *Graph
}

// New validates the given definition and builds its graph.
func New(w *Workflow) (*Workflow, error) {
	if w == nil {
		return nil, fmt.Errorf("workflow definition is required")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w.graph = NewGraph(w.Nodes, w.Connections)
	return w, nil
}

// Validate checks the structural invariants of the definition: a non-empty
// id, at least one node, unique node ids, and connections that reference
// nodes present in the workflow. Cycles are permitted; the executor skips
// nodes already executed within an execution.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if len(w.Nodes) == 0 {
		return fmt.Errorf("workflow %q has no nodes", w.ID)
	}
	seen := make(map[string]bool, len(w.Nodes))
	for _, node := range w.Nodes {
		if node.ID == "" {
			return fmt.Errorf("workflow %q contains a node without an id", w.ID)
		}
		if node.Type == "" {
			return fmt.Errorf("node %q has no type", node.ID)
		}
		if seen[node.ID] {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}
		seen[node.ID] = true
	}
	for _, conn := range w.Connections {
		if !seen[conn.From] {
			return fmt.Errorf("connection %q references unknown node %q", conn.ID, conn.From)
		}
		if !seen[conn.To] {
			return fmt.Errorf("connection %q references unknown node %q", conn.ID, conn.To)
		}
	}
	return nil
}

// Graph returns the adjacency view of the workflow, building it on demand
// for definitions that were not created through New.
func (w *Workflow) Graph() *Graph {
	if w.graph == nil {
		w.graph = NewGraph(w.Nodes, w.Connections)
	}
	return w.graph
}

// Node returns the node with the given id.
func (w *Workflow) Node(id string) (*Node, bool) {
	return w.Graph().Node(id)
}

// TriggerNodes returns the workflow's trigger nodes in definition order.
func (w *Workflow) TriggerNodes() []*Node {
	var triggers []*Node
	for _, node := range w.Nodes {
		if node.IsTrigger() {
			triggers = append(triggers, node)
		}
	}
	return triggers
}

// DisplayName returns the workflow name, falling back to the id.
func (w *Workflow) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.ID
}
