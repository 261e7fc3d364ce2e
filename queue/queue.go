// Package queue decouples workflow execution from the inbound request path.
// Callers enqueue jobs and return immediately; a worker pool dispatches them
// to the engine. High-priority jobs (manual and dry-run triggers) are drained
// before normal traffic so interactive testing is never starved.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/relayflow-ai/relay/slogger"
	"github.com/relayflow-ai/relay/trigger"
)

// Job priorities.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

var (
	// ErrQueueFull is returned when the target priority lane is at capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrQueueClosed is returned once Stop has been called.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrWorkflowNotActive is returned when the target workflow is unknown
	// or deactivated, so callers can surface a 404-style rejection instead
	// of silently queueing a job that will be dropped.
	ErrWorkflowNotActive = errors.New("workflow is not active")
)

// Job is a queued request to execute a workflow.
type Job struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	TriggerData *trigger.Data  `json:"trigger_data"`
	TriggerType string         `json:"trigger_type"`
	Priority    string         `json:"priority"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
}

// JobSpec describes a job to enqueue.
type JobSpec struct {
	WorkflowID  string
	TriggerData *trigger.Data
	TriggerType string
	Priority    string
	Metadata    map[string]any
}

// Handler consumes a dispatched job. Execution outcome is not reported back
// through the queue; the engine records it in execution history.
type Handler func(ctx context.Context, job *Job)

// ActivityChecker lets the queue reject jobs for inactive workflows at
// enqueue time.
type ActivityChecker interface {
	IsWorkflowActive(workflowID string) bool
}

// Options configures a Queue.
type Options struct {
	// Workers is the number of dispatch goroutines. Defaults to 4.
	Workers int

	// Capacity is the per-priority buffer size. Defaults to 256.
	Capacity int

	// Handler receives dispatched jobs. Required.
	Handler Handler

	// Checker validates workflow activity at enqueue time. Optional.
	Checker ActivityChecker

	Logger slogger.Logger
}

// Queue is an in-memory job queue with two priority lanes and a worker pool.
type Queue struct {
	high    chan *Job
	normal  chan *Job
	handler Handler
	checker ActivityChecker
	logger  slogger.Logger

	accepted atomic.Int64
	rejected atomic.Int64

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers int
}

// New returns a Queue. Start must be called before jobs are dispatched;
// AddJob accepts jobs as soon as the queue exists.
func New(opts Options) (*Queue, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("queue handler is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 256
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	return &Queue{
		high:    make(chan *Job, opts.Capacity),
		normal:  make(chan *Job, opts.Capacity),
		handler: opts.Handler,
		checker: opts.Checker,
		logger:  opts.Logger.With("component", "queue"),
		workers: opts.Workers,
	}, nil
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i)
	}
	q.logger.Info("queue started", "workers", q.workers)
	return nil
}

// Stop shuts the worker pool down. Jobs still buffered are abandoned; a job
// mid-execution finishes through its own context.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	q.logger.Info("queue stopped",
		"accepted", q.accepted.Load(), "rejected", q.rejected.Load())
}

// AddJob validates and enqueues a job, returning immediately. The returned
// Job carries the assigned id; the execution result is never returned to the
// caller (fire-and-forget).
func (q *Queue) AddJob(spec JobSpec) (*Job, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, ErrQueueClosed
	}
	if spec.WorkflowID == "" {
		q.rejected.Add(1)
		return nil, fmt.Errorf("workflow id is required")
	}
	if spec.TriggerData == nil {
		q.rejected.Add(1)
		return nil, fmt.Errorf("trigger data is required")
	}
	if q.checker != nil && !q.checker.IsWorkflowActive(spec.WorkflowID) {
		q.rejected.Add(1)
		return nil, fmt.Errorf("workflow %q: %w", spec.WorkflowID, ErrWorkflowNotActive)
	}
	priority := spec.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if priority != PriorityNormal && priority != PriorityHigh {
		q.rejected.Add(1)
		return nil, fmt.Errorf("unknown priority %q", priority)
	}

	job := &Job{
		ID:          newJobID(),
		WorkflowID:  spec.WorkflowID,
		TriggerData: spec.TriggerData,
		TriggerType: spec.TriggerType,
		Priority:    priority,
		Metadata:    spec.Metadata,
		EnqueuedAt:  time.Now(),
	}

	lane := q.normal
	if priority == PriorityHigh {
		lane = q.high
	}
	select {
	case lane <- job:
		q.accepted.Add(1)
		q.logger.Debug("job enqueued",
			"job_id", job.ID, "workflow_id", job.WorkflowID, "priority", priority)
		return job, nil
	default:
		q.rejected.Add(1)
		return nil, fmt.Errorf("priority %s: %w", priority, ErrQueueFull)
	}
}

// Depth returns the number of buffered jobs per priority, for status
// endpoints.
func (q *Queue) Depth() (high, normal int) {
	return len(q.high), len(q.normal)
}

// Stats returns accepted/rejected counters since startup.
func (q *Queue) Stats() (accepted, rejected int64) {
	return q.accepted.Load(), q.rejected.Load()
}

func (q *Queue) work(ctx context.Context, n int) {
	defer q.wg.Done()
	logger := q.logger.With("worker", n)
	for {
		// Drain the high lane before touching normal traffic.
		select {
		case <-ctx.Done():
			return
		case job := <-q.high:
			q.dispatch(ctx, logger, job)
			continue
		default:
		}
		select {
		case <-ctx.Done():
			return
		case job := <-q.high:
			q.dispatch(ctx, logger, job)
		case job := <-q.normal:
			q.dispatch(ctx, logger, job)
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, logger slogger.Logger, job *Job) {
	// A handler fault must never take down the worker; log and move on.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job handler panicked", "job_id", job.ID, "panic", r)
		}
	}()
	logger.Debug("dispatching job",
		"job_id", job.ID, "workflow_id", job.WorkflowID,
		"queued_for", time.Since(job.EnqueuedAt))
	q.handler(ctx, job)
}

func newJobID() string {
	return fmt.Sprintf("job_%s", uuid.New().String())
}
