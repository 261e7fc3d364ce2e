package engine

import (
	"time"

	"github.com/relayflow-ai/relay/workflow"
)

// PathStatus is the state of one execution path (branch).
type PathStatus string

const (
	PathStatusPending   PathStatus = "pending"
	PathStatusRunning   PathStatus = "running"
	PathStatusCompleted PathStatus = "completed"
	PathStatusFailed    PathStatus = "failed"

	// PathStatusCanceled marks paths aborted because a sibling branch
	// failed first.
	PathStatusCanceled PathStatus = "canceled"
)

// PathState is the queryable state of one execution path. Fully JSON
// serializable for the status endpoints.
type PathState struct {
	ID           string     `json:"id"`
	Status       PathStatus `json:"status"`
	CurrentNode  string     `json:"current_node"`
	NodesRun     []string   `json:"nodes_run,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
}

// Copy returns a copy of the path state safe to hand outside the engine.
func (p *PathState) Copy() *PathState {
	nodesRun := make([]string, len(p.NodesRun))
	copy(nodesRun, p.NodesRun)
	return &PathState{
		ID:           p.ID,
		Status:       p.Status,
		CurrentNode:  p.CurrentNode,
		NodesRun:     nodesRun,
		ErrorMessage: p.ErrorMessage,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
	}
}

// executionPath is a live branch walking the graph.
type executionPath struct {
	id          string
	currentNode *workflow.Node
}

// pathUpdate is sent from a path goroutine to the coordinator loop.
type pathUpdate struct {
	pathID   string
	nodeID   string
	newPaths []*executionPath
	err      error
	canceled bool
	isDone   bool
}
