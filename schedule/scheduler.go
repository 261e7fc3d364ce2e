// Package schedule runs workflows on fixed time intervals by enqueuing a
// synthetic trigger job on every tick.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/relayflow-ai/relay/queue"
	"github.com/relayflow-ai/relay/slogger"
	"github.com/relayflow-ai/relay/trigger"
)

// Enqueuer is the slice of the job queue the scheduler needs.
type Enqueuer interface {
	AddJob(spec queue.JobSpec) (*queue.Job, error)
}

// Options configures a schedule for one workflow.
type Options struct {
	// Interval between ticks. Must be positive.
	Interval time.Duration

	// Enabled gates ticking without tearing the schedule down. A disabled
	// schedule keeps its timer but enqueues nothing.
	Enabled bool

	// TriggerNodeID addresses the trigger node of the workflow. Optional;
	// the engine falls back to the workflow's first trigger node.
	TriggerNodeID string

	// Description is carried into the synthetic trigger data for logging.
	Description string
}

// Info is the queryable state of one schedule.
type Info struct {
	WorkflowID     string        `json:"workflow_id"`
	Interval       time.Duration `json:"interval"`
	Enabled        bool          `json:"enabled"`
	Description    string        `json:"description,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	LastTickAt     time.Time     `json:"last_tick_at"`
	TicksDelivered int64         `json:"ticks_delivered"`
}

type entry struct {
	opts   Options
	info   Info
	ticker *time.Ticker
	done   chan struct{}
}

// Scheduler owns one recurring timer per scheduled workflow.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	queue   Enqueuer
	logger  slogger.Logger
}

// New returns a Scheduler that enqueues onto q.
func New(q Enqueuer, logger slogger.Logger) *Scheduler {
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		queue:   q,
		logger:  logger.With("component", "scheduler"),
	}
}

// Schedule installs or replaces the schedule for a workflow. Calling it
// again for the same id tears down the previous timer first, so a workflow
// never accumulates duplicate tickers.
func (s *Scheduler) Schedule(workflowID string, opts Options) error {
	if workflowID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if opts.Interval <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", opts.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[workflowID]; ok {
		stopEntry(existing)
		s.logger.Info("replacing schedule", "workflow_id", workflowID)
	}

	e := &entry{
		opts: opts,
		info: Info{
			WorkflowID:  workflowID,
			Interval:    opts.Interval,
			Enabled:     opts.Enabled,
			Description: opts.Description,
			CreatedAt:   time.Now(),
		},
		ticker: time.NewTicker(opts.Interval),
		done:   make(chan struct{}),
	}
	s.entries[workflowID] = e
	go s.run(workflowID, e)

	s.logger.Info("workflow scheduled",
		"workflow_id", workflowID, "interval", opts.Interval, "enabled", opts.Enabled)
	return nil
}

// Unschedule removes the schedule for a workflow, stopping its timer.
func (s *Scheduler) Unschedule(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[workflowID]
	if !ok {
		return false
	}
	stopEntry(e)
	delete(s.entries, workflowID)
	s.logger.Info("workflow unscheduled", "workflow_id", workflowID)
	return true
}

// SetEnabled flips the enabled gate without resetting the timer.
func (s *Scheduler) SetEnabled(workflowID string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[workflowID]
	if !ok {
		return false
	}
	e.opts.Enabled = enabled
	e.info.Enabled = enabled
	return true
}

// ScheduleInfo returns the state of one schedule.
func (s *Scheduler) ScheduleInfo(workflowID string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[workflowID]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// AllSchedules returns the state of every schedule.
func (s *Scheduler) AllSchedules() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, e.info)
	}
	return infos
}

// Stop tears down every schedule.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		stopEntry(e)
		delete(s.entries, id)
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(workflowID string, e *entry) {
	for {
		select {
		case <-e.done:
			return
		case tick := <-e.ticker.C:
			// The tick is handled entirely under the lock, and only
			// while this entry is still installed. A tick buffered in
			// ticker.C when Unschedule runs therefore never enqueues:
			// once Unschedule returns, no further jobs land for the
			// workflow. AddJob is buffered and never blocks.
			s.mu.Lock()
			if s.entries[workflowID] != e {
				s.mu.Unlock()
				return
			}
			if !e.opts.Enabled {
				s.mu.Unlock()
				continue
			}
			e.info.LastTickAt = tick
			e.info.TicksDelivered++
			data := trigger.Standardize(trigger.SourceSchedule, map[string]any{
				"scheduled_at":     tick.UTC().Format(time.RFC3339),
				"interval_minutes": e.opts.Interval.Minutes(),
				"description":      e.opts.Description,
			}, e.opts.TriggerNodeID)
			if _, err := s.queue.AddJob(queue.JobSpec{
				WorkflowID:  workflowID,
				TriggerData: data,
				TriggerType: trigger.SourceSchedule,
				Priority:    queue.PriorityNormal,
			}); err != nil {
				// Scheduler faults must not stop future ticks.
				s.logger.Error("scheduled trigger rejected",
					"workflow_id", workflowID, "error", err)
			}
			s.mu.Unlock()
		}
	}
}

func stopEntry(e *entry) {
	e.ticker.Stop()
	close(e.done)
}
