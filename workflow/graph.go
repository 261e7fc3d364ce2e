package workflow

import "sort"

// Graph is the adjacency view of a workflow, indexed by node id.
type Graph struct {
	nodes    map[string]*Node
	outgoing map[string][]*Connection
}

// NewGraph builds a graph from nodes and connections.
func NewGraph(nodes []*Node, connections []*Connection) *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node, len(nodes)),
		outgoing: make(map[string][]*Connection),
	}
	for _, node := range nodes {
		g.nodes[node.ID] = node
	}
	for _, conn := range connections {
		g.outgoing[conn.From] = append(g.outgoing[conn.From], conn)
	}
	return g
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// From returns the connections leaving the given node, in definition order.
func (g *Graph) From(nodeID string) []*Connection {
	return g.outgoing[nodeID]
}

// NodeIDs returns all node ids in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCycle reports whether the graph contains a directed cycle. Cycles are
// legal in stored definitions; this exists so operator tooling can warn
// about them.
func (g *Graph) HasCycle() bool {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inStack
		for _, conn := range g.outgoing[id] {
			switch state[conn.To] {
			case inStack:
				return true
			case unvisited:
				if visit(conn.To) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}
	for id := range g.nodes {
		if state[id] == unvisited && visit(id) {
			return true
		}
	}
	return false
}
