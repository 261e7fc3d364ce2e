package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"go.jetify.com/typeid"

	"github.com/relayflow-ai/relay"
	"github.com/relayflow-ai/relay/handler"
	"github.com/relayflow-ai/relay/slogger"
	"github.com/relayflow-ai/relay/tracing"
	"github.com/relayflow-ai/relay/trigger"
	"github.com/relayflow-ai/relay/workflow"
)

// Status is the execution state. Terminal states are final: a completed,
// failed, or canceled execution is never resumed. A retry is a new execution
// triggered externally.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// StatusCanceled marks executions aborted by the caller's context
	// (daemon shutdown), as opposed to a node failure. Completed means the
	// frontier was exhausted; an aborted walk never reports completed.
	StatusCanceled Status = "canceled"
)

// NodeError records one node handler failure within an execution.
type NodeError struct {
	NodeID    string    `json:"node_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the JSON-serializable view of an execution exposed through
// the status endpoints.
type Snapshot struct {
	ID            string                    `json:"id"`
	Label         string                    `json:"label"`
	WorkflowID    string                    `json:"workflow_id"`
	TriggerNodeID string                    `json:"trigger_node_id"`
	Status        Status                    `json:"status"`
	NodeOutputs   map[string]map[string]any `json:"node_outputs"`
	Errors        []NodeError               `json:"errors,omitempty"`
	Paths         map[string]*PathState     `json:"paths,omitempty"`
	StartedAt     time.Time                 `json:"started_at"`
	CompletedAt   time.Time                 `json:"completed_at"`
}

// NewExecutionID creates a new execution id.
func NewExecutionID() string {
	value, err := typeid.WithPrefix("exec")
	if err != nil {
		log.Fatalf("error creating new id: %v", err)
	}
	return value.String()
}

type executionOptions struct {
	workflow    *workflow.Workflow
	triggerNode *workflow.Node
	triggerData *trigger.Data
	registry    *handler.Registry
	nodeTimeout time.Duration
	formatter   ExecutionFormatter
	logger      slogger.Logger
}

// Execution is one run of a workflow from a single trigger event through to
// a terminal state. It is created and mutated exclusively by the engine.
type Execution struct {
	id          string
	label       string
	workflow    *workflow.Workflow
	triggerNode *workflow.Node
	triggerData *trigger.Data
	registry    *handler.Registry
	nodeTimeout time.Duration
	formatter   ExecutionFormatter
	logger      slogger.Logger

	mutex       sync.RWMutex
	status      Status
	nodeOutputs map[string]map[string]any
	nodeErrors  []NodeError
	visited     map[string]bool
	paths       map[string]*PathState
	activePaths map[string]*executionPath
	pathUpdates chan pathUpdate
	pathCounter int
	startedAt   time.Time
	completedAt time.Time
	err         error

	cancel context.CancelFunc
	doneWg sync.WaitGroup
}

func newExecution(opts executionOptions) *Execution {
	id := NewExecutionID()
	label := fmt.Sprintf("%s-%s", petname.Adjective(), petname.Name())
	return &Execution{
		id:          id,
		label:       label,
		workflow:    opts.workflow,
		triggerNode: opts.triggerNode,
		triggerData: opts.triggerData,
		registry:    opts.registry,
		nodeTimeout: opts.nodeTimeout,
		formatter:   opts.formatter,
		logger:      opts.logger.With("execution_id", id, "execution", label),
		status:      StatusPending,
		nodeOutputs: make(map[string]map[string]any),
		visited:     make(map[string]bool),
		paths:       make(map[string]*PathState),
		activePaths: make(map[string]*executionPath),
		pathUpdates: make(chan pathUpdate, 64),
	}
}

// ID returns the execution id.
func (e *Execution) ID() string { return e.id }

// Label returns the human-readable execution label used in logs.
func (e *Execution) Label() string { return e.label }

// WorkflowID returns the id of the workflow this execution ran.
func (e *Execution) WorkflowID() string { return e.workflow.ID }

// Status returns the current execution status.
func (e *Execution) Status() Status {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.status
}

// Err returns the error that failed the execution, if any.
func (e *Execution) Err() error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.err
}

// NodeOutputs returns a copy of the per-node output map.
func (e *Execution) NodeOutputs() map[string]map[string]any {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	outputs := make(map[string]map[string]any, len(e.nodeOutputs))
	for nodeID, data := range e.nodeOutputs {
		copied := make(map[string]any, len(data))
		for k, v := range data {
			copied[k] = v
		}
		outputs[nodeID] = copied
	}
	return outputs
}

// Errors returns a copy of the recorded node errors.
func (e *Execution) Errors() []NodeError {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	errs := make([]NodeError, len(e.nodeErrors))
	copy(errs, e.nodeErrors)
	return errs
}

// Snapshot returns the serializable view of the execution.
func (e *Execution) Snapshot() *Snapshot {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	paths := make(map[string]*PathState, len(e.paths))
	for id, state := range e.paths {
		paths[id] = state.Copy()
	}
	outputs := make(map[string]map[string]any, len(e.nodeOutputs))
	for nodeID, data := range e.nodeOutputs {
		copied := make(map[string]any, len(data))
		for k, v := range data {
			copied[k] = v
		}
		outputs[nodeID] = copied
	}
	errs := make([]NodeError, len(e.nodeErrors))
	copy(errs, e.nodeErrors)
	return &Snapshot{
		ID:            e.id,
		Label:         e.label,
		WorkflowID:    e.workflow.ID,
		TriggerNodeID: e.triggerNode.ID,
		Status:        e.status,
		NodeOutputs:   outputs,
		Errors:        errs,
		Paths:         paths,
		StartedAt:     e.startedAt,
		CompletedAt:   e.completedAt,
	}
}

// Run walks the workflow graph to a terminal state. The trigger node's
// output is the trigger data in execution format; every outgoing connection
// of the trigger starts an independent path. Run returns the error that
// failed the execution, or nil when it completed.
func (e *Execution) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "workflow.execute")
	span.SetAttributes(map[string]string{
		"workflow_id":  e.workflow.ID,
		"execution_id": e.id,
		"trigger":      e.triggerData.Source,
	})

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mutex.Lock()
	e.status = StatusRunning
	e.startedAt = time.Now()
	e.cancel = cancel
	e.visited[e.triggerNode.ID] = true
	e.nodeOutputs[e.triggerNode.ID] = trigger.ExecutionFormat(e.triggerData)
	e.mutex.Unlock()

	e.logger.Info("execution started",
		"workflow_id", e.workflow.ID, "trigger_node", e.triggerNode.ID,
		"trigger", trigger.Summary(e.triggerData))

	initialPaths := e.followConnections(e.triggerNode.ID, "main")
	if len(initialPaths) == 0 {
		// No outgoing connections from the trigger: the execution is
		// trivially complete with only the trigger output recorded.
		e.finish(nil)
		span.End(nil)
		return nil
	}
	for _, path := range initialPaths {
		e.addPath(path)
		e.doneWg.Add(1)
		go e.runPath(ctx, path)
	}

	err, sawCanceled := e.coordinate(ctx)
	if err == nil && sawCanceled && parent.Err() != nil {
		// The caller's context was canceled and paths wound down
		// without a node failure of their own. That is an aborted
		// walk, not a completed one.
		err = parent.Err()
		e.finishCanceled(err)
		span.End(err)
		return err
	}
	e.finish(err)
	span.End(err)
	return err
}

// coordinate consumes path updates until every path has terminated. The
// first node failure cancels the execution context so sibling branches stop
// at their next suspension point; every failure observed before the halt is
// recorded.
func (e *Execution) coordinate(ctx context.Context) (firstErr error, sawCanceled bool) {
	for e.activePathCount() > 0 {
		update := <-e.pathUpdates

		switch {
		case update.canceled:
			sawCanceled = true
			e.updatePathState(update.pathID, func(state *PathState) {
				state.Status = PathStatusCanceled
				state.EndTime = time.Now()
			})
			e.removeActivePath(update.pathID)

		case update.err != nil:
			e.appendError(update.nodeID, update.err)
			e.updatePathState(update.pathID, func(state *PathState) {
				state.Status = PathStatusFailed
				state.ErrorMessage = update.err.Error()
				state.EndTime = time.Now()
			})
			e.removeActivePath(update.pathID)
			if firstErr == nil {
				firstErr = update.err
				e.cancel()
			}

		default:
			e.updatePathState(update.pathID, func(state *PathState) {
				if update.nodeID != "" {
					state.NodesRun = append(state.NodesRun, update.nodeID)
				}
				if update.isDone {
					state.Status = PathStatusCompleted
					state.EndTime = time.Now()
				}
			})
			if update.isDone {
				e.removeActivePath(update.pathID)
			}
			for _, newPath := range update.newPaths {
				e.addPath(newPath)
				e.doneWg.Add(1)
				go e.runPath(ctx, newPath)
			}
		}
	}
	e.doneWg.Wait()
	return firstErr, sawCanceled
}

// runPath executes a single branch until it has no unvisited successors,
// fails, or is canceled by a sibling's failure.
func (e *Execution) runPath(ctx context.Context, path *executionPath) {
	defer e.doneWg.Done()

	logger := e.logger.With("path_id", path.id)
	for {
		e.updatePathState(path.id, func(state *PathState) {
			state.Status = PathStatusRunning
			state.CurrentNode = path.currentNode.ID
		})

		node := path.currentNode
		output, err := e.executeNode(ctx, node, path.id)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				// A sibling failed first; this branch was aborted, not failed.
				e.pathUpdates <- pathUpdate{pathID: path.id, canceled: true}
				return
			}
			logger.Error("node failed", "node_id", node.ID, "node_type", node.Type, "error", err)
			e.pathUpdates <- pathUpdate{pathID: path.id, nodeID: node.ID, err: err}
			return
		}
		e.setNodeOutput(node.ID, output)

		newPaths := e.followConnections(node.ID, path.id)

		// A path keeps walking while it has exactly one successor; zero
		// successors complete it, several hand off to fresh paths.
		isDone := len(newPaths) != 1
		var spawn []*executionPath
		if len(newPaths) > 1 {
			spawn = newPaths
		}
		e.pathUpdates <- pathUpdate{
			pathID:   path.id,
			nodeID:   node.ID,
			newPaths: spawn,
			isDone:   isDone,
		}
		if isDone {
			logger.Debug("path finished", "last_node", node.ID, "branched", len(newPaths))
			return
		}
		path = newPaths[0]
	}
}

// executeNode looks up and runs the handler for one node under the per-node
// timeout. Registry misses, handler errors, timeouts, and recovered panics
// are all reported the same way: as a node failure.
func (e *Execution) executeNode(ctx context.Context, node *workflow.Node, pathID string) (output map[string]any, err error) {
	h, ok := e.registry.Get(node.Type)
	if !ok {
		return nil, fmt.Errorf("no handler registered for node type %q", node.Type)
	}

	nodeCtx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
	defer cancel()

	nodeCtx, span := tracing.StartSpan(nodeCtx, "node.execute")
	span.SetAttributes(map[string]string{
		"workflow_id": e.workflow.ID,
		"node_id":     node.ID,
		"node_type":   node.Type,
		"path_id":     pathID,
	})
	defer func() { span.End(err) }()

	if e.formatter != nil {
		e.formatter.PrintNodeStart(node.ID, node.Type)
	}
	e.logger.Info("executing node", "node_id", node.ID, "node_type", node.Type, "path_id", pathID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for node type %q panicked: %v", node.Type, r)
			output = nil
		}
		if err != nil && e.formatter != nil {
			e.formatter.PrintNodeError(node.ID, err)
		}
	}()

	input := e.nodeInput(node.ID)
	result, execErr := h.Execute(nodeCtx, &relay.HandlerRequest{
		NodeID:      node.ID,
		NodeLabel:   node.Label,
		Config:      node.Config,
		Input:       input,
		WorkflowID:  e.workflow.ID,
		ExecutionID: e.id,
	})
	if execErr != nil {
		if errors.Is(execErr, context.DeadlineExceeded) && nodeCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("node %q timed out after %s: %w", node.ID, e.nodeTimeout, execErr)
		}
		return nil, execErr
	}
	if result == nil {
		result = &relay.HandlerResult{}
	}
	if result.Mock {
		e.logger.Warn("node produced a mock result (missing credential)",
			"node_id", node.ID, "node_type", node.Type)
	}
	if result.Data == nil {
		result.Data = make(map[string]any)
	}
	if e.formatter != nil {
		e.formatter.PrintNodeOutput(node.ID, result.Data)
	}
	return result.Data, nil
}

// followConnections claims and returns the unvisited successors of a node
// as new execution paths. A connection back to a node already executed (or
// claimed by a concurrent branch) in this execution is skipped, which makes
// cycles benign no-ops and fan-in joins run once.
func (e *Execution) followConnections(nodeID, pathID string) []*executionPath {
	connections := e.workflow.Graph().From(nodeID)
	if len(connections) == 0 {
		return nil
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	var targets []*workflow.Node
	for _, conn := range connections {
		target, ok := e.workflow.Node(conn.To)
		if !ok {
			// Validated at registration; connections cannot dangle.
			continue
		}
		if e.visited[target.ID] {
			e.logger.Debug("skipping already-executed node",
				"from", nodeID, "to", target.ID)
			continue
		}
		e.visited[target.ID] = true
		targets = append(targets, target)
	}

	paths := make([]*executionPath, 0, len(targets))
	for _, target := range targets {
		id := pathID
		if len(targets) > 1 {
			e.pathCounter++
			id = fmt.Sprintf("%s-%d", pathID, e.pathCounter)
		}
		paths = append(paths, &executionPath{id: id, currentNode: target})
	}
	return paths
}

// nodeInput resolves the input for a node: the output of its predecessor on
// the walk. The caller's path arrived through exactly one connection, and
// that connection's source output was stored before the path advanced.
func (e *Execution) nodeInput(nodeID string) map[string]any {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	// Find the connection that leads here and take its source's output.
	for _, conn := range e.workflow.Connections {
		if conn.To != nodeID {
			continue
		}
		if output, ok := e.nodeOutputs[conn.From]; ok {
			return output
		}
	}
	return trigger.ExecutionFormat(e.triggerData)
}

func (e *Execution) setNodeOutput(nodeID string, output map[string]any) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.nodeOutputs[nodeID] = output
}

func (e *Execution) appendError(nodeID string, err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.nodeErrors = append(e.nodeErrors, NodeError{
		NodeID:    nodeID,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

func (e *Execution) addPath(path *executionPath) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.paths[path.id] = &PathState{
		ID:          path.id,
		Status:      PathStatusPending,
		CurrentNode: path.currentNode.ID,
		StartTime:   time.Now(),
	}
	e.activePaths[path.id] = path
}

func (e *Execution) removeActivePath(pathID string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.activePaths, pathID)
}

func (e *Execution) activePathCount() int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return len(e.activePaths)
}

func (e *Execution) updatePathState(pathID string, fn func(*PathState)) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if state, ok := e.paths[pathID]; ok {
		fn(state)
	}
}

func (e *Execution) finish(err error) {
	e.mutex.Lock()
	e.completedAt = time.Now()
	if err != nil {
		e.status = StatusFailed
		e.err = err
	} else {
		e.status = StatusCompleted
	}
	status := e.status
	duration := e.completedAt.Sub(e.startedAt)
	e.mutex.Unlock()

	if err != nil {
		e.logger.Error("execution failed", "duration", duration, "error", err)
	} else {
		e.logger.Info("execution completed", "duration", duration)
	}
	if e.formatter != nil {
		e.formatter.PrintExecutionDone(e.id, string(status), err)
	}
}

// finishCanceled marks an execution aborted by the caller's context. Node
// outputs recorded before the abort stay on the snapshot.
func (e *Execution) finishCanceled(err error) {
	e.mutex.Lock()
	e.completedAt = time.Now()
	e.status = StatusCanceled
	e.err = err
	duration := e.completedAt.Sub(e.startedAt)
	e.mutex.Unlock()

	e.logger.Warn("execution canceled", "duration", duration, "error", err)
	if e.formatter != nil {
		e.formatter.PrintExecutionDone(e.id, string(StatusCanceled), err)
	}
}
