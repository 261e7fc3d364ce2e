// Package engine hosts the workflow registry and the workflow executor: the
// component that takes trigger events, walks the workflow graph, and runs
// one handler per node. Registry state and execution state live on an
// injected Engine value so tests can run isolated instances side by side.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relayflow-ai/relay/handler"
	"github.com/relayflow-ai/relay/queue"
	"github.com/relayflow-ai/relay/slogger"
	"github.com/relayflow-ai/relay/trigger"
	"github.com/relayflow-ai/relay/workflow"
)

var (
	// ErrWorkflowNotActive is returned when a trigger addresses a workflow
	// that is unknown or has been deactivated. Deactivated workflows are
	// rejected, not silently ignored, so integrations can surface the state.
	ErrWorkflowNotActive = errors.New("workflow is not active")

	// ErrNoTriggerNode is returned when a trigger cannot be matched to a
	// trigger node in the workflow.
	ErrNoTriggerNode = errors.New("no matching trigger node")
)

// DefaultNodeTimeout bounds a single node execution so a hung handler can
// never pin an execution in the running state forever.
const DefaultNodeTimeout = 60 * time.Second

// DefaultHistoryLimit caps the in-memory execution history.
const DefaultHistoryLimit = 200

// Options configures an Engine.
type Options struct {
	// Registry resolves node types to handlers. Required.
	Registry *handler.Registry

	// NodeTimeout bounds each node execution. Defaults to DefaultNodeTimeout.
	NodeTimeout time.Duration

	// HistoryLimit caps retained terminal executions. Defaults to
	// DefaultHistoryLimit; oldest entries are evicted first.
	HistoryLimit int

	// Formatter receives per-node progress for interactive output. Optional.
	Formatter ExecutionFormatter

	Logger slogger.Logger
}

type activeWorkflow struct {
	workflow    *workflow.Workflow
	metadata    map[string]any
	activatedAt time.Time
}

// Engine owns the active-workflow table and all execution state.
type Engine struct {
	registry     *handler.Registry
	nodeTimeout  time.Duration
	historyLimit int
	formatter    ExecutionFormatter
	logger       slogger.Logger

	mu         sync.RWMutex
	workflows  map[string]*activeWorkflow
	executions map[string]*Execution
	history    []*Execution
}

// New returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("handler registry is required")
	}
	if opts.NodeTimeout <= 0 {
		opts.NodeTimeout = DefaultNodeTimeout
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	return &Engine{
		registry:     opts.Registry,
		nodeTimeout:  opts.NodeTimeout,
		historyLimit: opts.HistoryLimit,
		formatter:    opts.Formatter,
		logger:       opts.Logger.With("component", "engine"),
		workflows:    make(map[string]*activeWorkflow),
		executions:   make(map[string]*Execution),
	}, nil
}

// RegisterWorkflow validates and activates a workflow. Registering an id
// again replaces the previous definition, matching a builder re-save.
func (e *Engine) RegisterWorkflow(wf *workflow.Workflow, metadata map[string]any) error {
	wf, err := workflow.New(wf)
	if err != nil {
		return err
	}
	if len(wf.TriggerNodes()) == 0 {
		return fmt.Errorf("workflow %q has no trigger node", wf.ID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[wf.ID] = &activeWorkflow{
		workflow:    wf,
		metadata:    metadata,
		activatedAt: time.Now(),
	}
	e.logger.Info("workflow activated",
		"workflow_id", wf.ID, "name", wf.DisplayName(),
		"nodes", len(wf.Nodes), "connections", len(wf.Connections))
	return nil
}

// DeactivateWorkflow removes a workflow from the active table. Subsequent
// triggers for the id fail with ErrWorkflowNotActive.
func (e *Engine) DeactivateWorkflow(workflowID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workflows[workflowID]; !ok {
		return false
	}
	delete(e.workflows, workflowID)
	e.logger.Info("workflow deactivated", "workflow_id", workflowID)
	return true
}

// IsWorkflowActive reports whether the workflow can be triggered. Satisfies
// queue.ActivityChecker so jobs for inactive workflows are rejected at
// enqueue time.
func (e *Engine) IsWorkflowActive(workflowID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.workflows[workflowID]
	return ok
}

// GetWorkflow returns an active workflow by id.
func (e *Engine) GetWorkflow(workflowID string) (*workflow.Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	active, ok := e.workflows[workflowID]
	if !ok {
		return nil, false
	}
	return active.workflow, true
}

// ActiveWorkflowIDs lists the ids of all active workflows.
func (e *Engine) ActiveWorkflowIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.workflows))
	for id := range e.workflows {
		ids = append(ids, id)
	}
	return ids
}

// FindWorkflowByTriggerNode scans active workflows for the one containing
// the given trigger node. Webhook routes configured before the builder
// stored a workflow id only know the node id.
func (e *Engine) FindWorkflowByTriggerNode(nodeID string) (*workflow.Workflow, *workflow.Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, active := range e.workflows {
		if node, ok := active.workflow.Node(nodeID); ok && node.IsTrigger() {
			return active.workflow, node, true
		}
	}
	return nil, nil, false
}

// HandleJob consumes a dispatched queue job. It satisfies queue.Handler;
// outcomes are recorded in execution history, never reported to the
// triggering caller.
func (e *Engine) HandleJob(ctx context.Context, job *queue.Job) {
	execution, err := e.ExecuteWorkflow(ctx, job.WorkflowID, job.TriggerData)
	if err != nil {
		e.logger.Error("job execution rejected",
			"job_id", job.ID, "workflow_id", job.WorkflowID, "error", err)
		return
	}
	e.logger.Info("job finished",
		"job_id", job.ID, "execution_id", execution.ID(), "status", execution.Status())
}

// ExecuteWorkflow runs one execution of the workflow to a terminal state and
// returns it. The trigger node is taken from the trigger data when set,
// otherwise the workflow's first trigger node is used.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, data *trigger.Data) (*Execution, error) {
	if data == nil {
		return nil, fmt.Errorf("trigger data is required")
	}

	e.mu.RLock()
	active, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, ErrWorkflowNotActive)
	}
	wf := active.workflow

	triggerNode, err := resolveTriggerNode(wf, data.NodeID)
	if err != nil {
		return nil, err
	}

	execution := newExecution(executionOptions{
		workflow:    wf,
		triggerNode: triggerNode,
		triggerData: data,
		registry:    e.registry,
		nodeTimeout: e.nodeTimeout,
		formatter:   e.formatter,
		logger:      e.logger,
	})

	e.mu.Lock()
	e.executions[execution.ID()] = execution
	e.mu.Unlock()

	runErr := execution.Run(ctx)
	e.moveToHistory(execution)
	if runErr != nil {
		e.logger.Warn("execution ended with error",
			"execution_id", execution.ID(), "workflow_id", workflowID, "error", runErr)
	}
	return execution, nil
}

// GetExecution returns an execution by id, searching active executions and
// then history.
func (e *Engine) GetExecution(executionID string) (*Execution, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if execution, ok := e.executions[executionID]; ok {
		return execution, true
	}
	for _, execution := range e.history {
		if execution.ID() == executionID {
			return execution, true
		}
	}
	return nil, false
}

// ListExecutions returns snapshots of all known executions, active first,
// then history from newest to oldest.
func (e *Engine) ListExecutions() []*Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshots := make([]*Snapshot, 0, len(e.executions)+len(e.history))
	for _, execution := range e.executions {
		snapshots = append(snapshots, execution.Snapshot())
	}
	for i := len(e.history) - 1; i >= 0; i-- {
		snapshots = append(snapshots, e.history[i].Snapshot())
	}
	return snapshots
}

// moveToHistory moves a terminal execution from the active map to the
// bounded history list, evicting the oldest entry past the limit.
func (e *Engine) moveToHistory(execution *Execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.executions, execution.ID())
	e.history = append(e.history, execution)
	if overflow := len(e.history) - e.historyLimit; overflow > 0 {
		e.history = e.history[overflow:]
	}
}

func resolveTriggerNode(wf *workflow.Workflow, nodeID string) (*workflow.Node, error) {
	if nodeID != "" {
		node, ok := wf.Node(nodeID)
		if !ok || !node.IsTrigger() {
			return nil, fmt.Errorf("workflow %q node %q: %w", wf.ID, nodeID, ErrNoTriggerNode)
		}
		return node, nil
	}
	triggers := wf.TriggerNodes()
	if len(triggers) == 0 {
		return nil, fmt.Errorf("workflow %q: %w", wf.ID, ErrNoTriggerNode)
	}
	return triggers[0], nil
}
