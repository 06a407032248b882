package main

import (
	"context"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/flowmark/journey/pkg/eventbus"
	"github.com/flowmark/journey/pkg/events"
	"github.com/flowmark/journey/pkg/queue"
	"github.com/gofiber/fiber/v3"
)

const shutdownTimeout = 10 * time.Second

// JobProcessor handles a single queue job.
type JobProcessor interface {
	Process(ctx context.Context, job *queue.Job) (any, error)
}

// Worker runs the HTTP front door and the queue workers in one process.
type Worker struct {
	app       *fiber.App
	queue     *queue.Queue
	processor JobProcessor
	eventBus  eventbus.EventSubscriber
	logger    *slog.Logger
}

func NewWorker(
	app *fiber.App,
	jobQueue *queue.Queue,
	processor JobProcessor,
	eventBus eventbus.EventSubscriber,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		app:       app,
		queue:     jobQueue,
		processor: processor,
		eventBus:  eventBus,
		logger:    logger.With("queue", jobQueue.Name()),
	}
}

// Start runs the worker until SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context, port int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return w.Run(ctx, ":"+strconv.Itoa(port))
}

// Run serves addr and processes jobs until ctx is done or the listener fails.
func (w *Worker) Run(ctx context.Context, addr string) error {
	if err := w.subscribe(ctx); err != nil {
		return err
	}

	processCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	processed := make(chan error, 1)

	go func() {
		processed <- w.queue.Process(processCtx, w.processor.Process)
	}()

	listened := make(chan error, 1)

	go func() {
		listened <- w.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	w.logger.InfoContext(ctx, "Worker started", "addr", addr)

	var runErr error

	workersStopped := false

	select {
	case <-ctx.Done():
		w.logger.InfoContext(ctx, "Shutting down worker...")
	case err := <-listened:
		runErr = err
		w.logger.ErrorContext(ctx, "HTTP listener stopped", "error", err)
	case err := <-processed:
		runErr = err
		workersStopped = true
		w.logger.ErrorContext(ctx, "Queue workers stopped", "error", err)
	}

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := w.app.ShutdownWithContext(shutdownCtx); err != nil {
		w.logger.Error("Failed to shut down HTTP server", "error", err)
	}

	// in-flight jobs finish their bookkeeping before the caller closes the stores
	if !workersStopped {
		select {
		case <-processed:
		case <-shutdownCtx.Done():
			w.logger.Warn("Timed out waiting for queue workers", "timeout", shutdownTimeout)
		}
	}

	return runErr
}

func (w *Worker) subscribe(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.JobCompletedEvent:               w.handleJobCompleted,
		events.JobFailedEvent:                  w.handleJobFailed,
		events.WorkflowExecutionCompletedEvent: w.handleExecutionCompleted,
		events.WorkflowExecutionFailedEvent:    w.handleExecutionFailed,
	}

	for eventType, handler := range handlers {
		if err := w.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	err := w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	return nil
}

func (w *Worker) handleJobCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.JobCompleted)
	if !ok {
		return w.invalidEvent(ctx, events.JobCompletedEvent)
	}

	w.logger.InfoContext(ctx, "Job completed",
		"job_id", completed.JobID,
		"job_name", completed.JobName,
		"attempts", completed.AttemptsMade,
		"duration", completed.Duration,
	)

	return nil
}

func (w *Worker) handleJobFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.JobFailed)
	if !ok {
		return w.invalidEvent(ctx, events.JobFailedEvent)
	}

	w.logger.WarnContext(ctx, "Job failed",
		"job_id", failed.JobID,
		"job_name", failed.JobName,
		"attempts", failed.AttemptsMade,
		"error", failed.Error,
	)

	return nil
}

func (w *Worker) handleExecutionCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.WorkflowExecutionCompleted)
	if !ok {
		return w.invalidEvent(ctx, events.WorkflowExecutionCompletedEvent)
	}

	w.logger.InfoContext(ctx, "Workflow execution completed",
		"workflow_id", completed.WorkflowID,
		"execution_id", completed.ExecutionID,
		"nodes", completed.NodeCount,
		"duration", completed.Duration,
	)

	return nil
}

func (w *Worker) handleExecutionFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.WorkflowExecutionFailed)
	if !ok {
		return w.invalidEvent(ctx, events.WorkflowExecutionFailedEvent)
	}

	w.logger.WarnContext(ctx, "Workflow execution failed",
		"workflow_id", failed.WorkflowID,
		"execution_id", failed.ExecutionID,
		"failed_node_id", failed.FailedNodeID,
		"error", failed.Error,
	)

	return nil
}

func (w *Worker) invalidEvent(ctx context.Context, eventType events.EventType) error {
	w.logger.ErrorContext(ctx, "Invalid event payload", "event_type", eventType)

	return nil
}
