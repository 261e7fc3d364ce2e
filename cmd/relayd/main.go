// Command relayd runs the workflow engine as a daemon: it wires the handler
// registry, engine, job queue, and scheduler together and exposes thin HTTP
// entry points for webhooks, manual triggers, and execution status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/relayflow-ai/relay/config"
	"github.com/relayflow-ai/relay/engine"
	"github.com/relayflow-ai/relay/handler"
	"github.com/relayflow-ai/relay/handler/claude"
	"github.com/relayflow-ai/relay/handler/delay"
	"github.com/relayflow-ai/relay/handler/httprequest"
	"github.com/relayflow-ai/relay/handler/instagram"
	"github.com/relayflow-ai/relay/handler/telegram"
	"github.com/relayflow-ai/relay/handler/transform"
	"github.com/relayflow-ai/relay/queue"
	"github.com/relayflow-ai/relay/schedule"
	"github.com/relayflow-ai/relay/slogger"
	"github.com/relayflow-ai/relay/tracing"
	"github.com/relayflow-ai/relay/trigger"
	"github.com/relayflow-ai/relay/workflow"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "relay.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slogger.New(slogger.LevelFromString(cfg.LogLevel))
	logger.Info("starting relayd", "version", version, "name", cfg.Name)

	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Name, version, cfg.Tracing.OutputFile); err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
	}

	registry := handler.NewRegistry()
	registry.MustRegister(telegram.New(telegram.WithToken(cfg.Credentials.TelegramBotToken)))
	registry.MustRegister(instagram.New(instagram.WithAccessToken(cfg.Credentials.InstagramAccessToken)))
	registry.MustRegister(claude.New(claude.WithAPIKey(cfg.Credentials.AnthropicAPIKey)))
	registry.MustRegister(httprequest.New())
	registry.MustRegister(transform.New())
	registry.MustRegister(delay.New())

	eng, err := engine.New(engine.Options{
		Registry:     registry,
		NodeTimeout:  cfg.Executor.NodeTimeout(),
		HistoryLimit: cfg.Executor.HistoryLimit,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	q, err := queue.New(queue.Options{
		Workers:  cfg.Queue.Workers,
		Capacity: cfg.Queue.Capacity,
		Handler:  eng.HandleJob,
		Checker:  eng,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := q.Start(ctx); err != nil {
		return err
	}
	defer q.Stop()

	scheduler := schedule.New(q, logger)
	defer scheduler.Stop()

	for _, path := range cfg.Workflows {
		wf, err := workflow.ParseFile(path)
		if err != nil {
			return fmt.Errorf("loading workflow %s: %w", path, err)
		}
		if err := eng.RegisterWorkflow(wf, map[string]any{"source_file": path}); err != nil {
			return fmt.Errorf("activating workflow %s: %w", path, err)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newMux(eng, q, scheduler, logger),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newMux builds the HTTP entry points. These are deliberately thin: they
// standardize and validate the payload, enqueue, and answer immediately.
// The triggering caller never waits for workflow completion.
func newMux(eng *engine.Engine, q *queue.Queue, scheduler *schedule.Scheduler, logger slogger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Webhook entry: the integration only knows the trigger node id.
	mux.HandleFunc("POST /webhook/{source}/{nodeID}", func(w http.ResponseWriter, r *http.Request) {
		source := r.PathValue("source")
		nodeID := r.PathValue("nodeID")

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON payload: %w", err))
			return
		}
		data := trigger.Standardize(source, payload, nodeID)
		if result := trigger.Validate(data); !result.Valid {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": result.Problems})
			return
		}
		wf, _, ok := eng.FindWorkflowByTriggerNode(nodeID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no active workflow for trigger node %q", nodeID))
			return
		}
		job, err := q.AddJob(queue.JobSpec{
			WorkflowID:  wf.ID,
			TriggerData: data,
			TriggerType: source,
			Priority:    queue.PriorityNormal,
		})
		if err != nil {
			writeError(w, statusForQueueError(err), err)
			return
		}
		logger.Debug("webhook accepted", "job_id", job.ID, "summary", trigger.Summary(data))
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID})
	})

	// Manual trigger: high priority so interactive testing is not starved.
	mux.HandleFunc("POST /workflows/{id}/trigger", func(w http.ResponseWriter, r *http.Request) {
		workflowID := r.PathValue("id")
		var payload map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&payload)
		}
		data := trigger.Standardize(trigger.SourceManual, payload, "")
		job, err := q.AddJob(queue.JobSpec{
			WorkflowID:  workflowID,
			TriggerData: data,
			TriggerType: trigger.SourceManual,
			Priority:    queue.PriorityHigh,
		})
		if err != nil {
			writeError(w, statusForQueueError(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID})
	})

	mux.HandleFunc("POST /workflows", func(w http.ResponseWriter, r *http.Request) {
		var wf workflow.Workflow
		if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid workflow JSON: %w", err))
			return
		}
		if err := eng.RegisterWorkflow(&wf, nil); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"workflow_id": wf.ID})
	})

	mux.HandleFunc("DELETE /workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !eng.DeactivateWorkflow(r.PathValue("id")) {
			writeError(w, http.StatusNotFound, engine.ErrWorkflowNotActive)
			return
		}
		scheduler.Unschedule(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /workflows/{id}/schedule", func(w http.ResponseWriter, r *http.Request) {
		workflowID := r.PathValue("id")
		var body struct {
			IntervalMinutes float64 `json:"interval_minutes"`
			Enabled         bool    `json:"enabled"`
			Description     string  `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !eng.IsWorkflowActive(workflowID) {
			writeError(w, http.StatusNotFound, engine.ErrWorkflowNotActive)
			return
		}
		err := scheduler.Schedule(workflowID, schedule.Options{
			Interval:    time.Duration(body.IntervalMinutes * float64(time.Minute)),
			Enabled:     body.Enabled,
			Description: body.Description,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		info, _ := scheduler.ScheduleInfo(workflowID)
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("DELETE /workflows/{id}/schedule", func(w http.ResponseWriter, r *http.Request) {
		if !scheduler.Unschedule(r.PathValue("id")) {
			writeError(w, http.StatusNotFound, fmt.Errorf("no schedule for workflow %q", r.PathValue("id")))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /executions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.ListExecutions())
	})

	mux.HandleFunc("GET /executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		execution, ok := eng.GetExecution(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("execution %q not found", r.PathValue("id")))
			return
		}
		writeJSON(w, http.StatusOK, execution.Snapshot())
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		high, normal := q.Depth()
		accepted, rejected := q.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"version":          version,
			"active_workflows": eng.ActiveWorkflowIDs(),
			"schedules":        scheduler.AllSchedules(),
			"queue": map[string]any{
				"high":     high,
				"normal":   normal,
				"accepted": accepted,
				"rejected": rejected,
			},
		})
	})

	return mux
}

func statusForQueueError(err error) int {
	switch {
	case errors.Is(err, queue.ErrWorkflowNotActive):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
