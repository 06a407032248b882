package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowmark/journey/pkg/eventbus"
	"github.com/flowmark/journey/pkg/events"
	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/persistence"
	"github.com/flowmark/journey/pkg/queue"
	"github.com/flowmark/journey/pkg/workflow"
	"github.com/google/uuid"
)

// Executor runs one workflow graph.
type Executor interface {
	ExecuteWorkflow(ctx context.Context, workflow *models.Workflow) (*models.WorkflowExecution, error)
}

// Processor is the queue handler for workflow jobs.
type Processor struct {
	engine     Executor
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
}

type ProcessorOption func(*Processor)

// WithExecutionRepository stores every execution record the processor produces.
func WithExecutionRepository(repo persistence.ExecutionRepository) ProcessorOption {
	return func(p *Processor) {
		p.executions = repo
	}
}

// WithEventPublisher publishes workflow execution lifecycle events.
func WithEventPublisher(publisher eventbus.EventPublisher) ProcessorOption {
	return func(p *Processor) {
		p.publisher = publisher
	}
}

func NewProcessor(engine Executor, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		engine: engine,
		logger: logger.With("module", "workflow_processor"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process dispatches a job by name. Workflows whose nodes fail still produce a
// successful job carrying a failed execution; only invalid payloads and rejected
// graphs fail the job. A batch is checked as a whole before any item runs.
func (p *Processor) Process(ctx context.Context, job *queue.Job) (any, error) {
	logger := p.logger.With("job_id", job.ID, "job_name", job.Name)

	switch job.Name {
	case models.JobProcessCronWorkflow:
		var payload models.CronWorkflowJob
		if err := job.Decode(&payload); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", job.Name, err)
		}

		if payload.Workflow == nil {
			return nil, fmt.Errorf("invalid %s payload: %w", job.Name, ErrWorkflowRequired)
		}

		execution, err := p.execute(ctx, logger, job, payload.Workflow)
		if err != nil {
			return nil, err
		}

		return &models.ExecutionResult{
			Success:   execution.Status == models.ExecutionStatusCompleted,
			Execution: execution,
		}, nil

	case models.JobProcessWorkflow, models.JobProcessWorkflows:
		var items []models.WorkflowJob
		if err := job.Decode(&items); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", job.Name, err)
		}

		if len(items) == 0 {
			return nil, fmt.Errorf("invalid %s payload: %w", job.Name, ErrEmptyBatch)
		}

		// every item is checked before the first one runs
		for _, item := range items {
			if item.Workflow == nil {
				return nil, fmt.Errorf("invalid %s payload: item %s: %w", job.Name, item.ID, ErrWorkflowRequired)
			}

			if err := workflow.ValidateGraph(item.Workflow); err != nil {
				return nil, fmt.Errorf("invalid %s payload: item %s: %w", job.Name, item.ID, err)
			}
		}

		result := &models.ExecutionsResult{
			Success:    true,
			Executions: make([]*models.WorkflowExecution, 0, len(items)),
		}

		for i, item := range items {
			execution, err := p.execute(ctx, logger, job, item.Workflow)
			if err != nil {
				logger.ErrorContext(ctx, "Batch item failed", "item_id", item.ID, "error", err)

				if execution == nil {
					execution = p.failedExecution(item.Workflow, err)
					p.record(ctx, logger, job, execution)
				}
			}

			result.Executions = append(result.Executions, execution)
			result.Success = result.Success && execution.Status == models.ExecutionStatusCompleted

			if err := job.UpdateProgress(ctx, (i+1)*100/len(items)); err != nil {
				logger.WarnContext(ctx, "Failed to update job progress", "error", err)
			}
		}

		return result, nil

	default:
		return nil, fmt.Errorf("%w: %s", queue.ErrUnknownJobName, job.Name)
	}
}

func (p *Processor) execute(
	ctx context.Context,
	logger *slog.Logger,
	job *queue.Job,
	wf *models.Workflow,
) (*models.WorkflowExecution, error) {
	execution, err := p.engine.ExecuteWorkflow(ctx, wf)

	if execution != nil {
		p.record(ctx, logger, job, execution)
	}

	if err != nil {
		return execution, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}

	return execution, nil
}

// record persists the execution and publishes its lifecycle event, also after the
// job context was cancelled. Neither failure fails the job.
func (p *Processor) record(ctx context.Context, logger *slog.Logger, job *queue.Job, execution *models.WorkflowExecution) {
	ctx = context.WithoutCancel(ctx)
	logger = logger.With("workflow_id", execution.WorkflowID, "execution_id", execution.ID)

	if p.executions != nil {
		if err := p.executions.SaveExecution(ctx, execution); err != nil {
			logger.ErrorContext(ctx, "Failed to save execution", "error", err)
		}
	}

	if p.publisher == nil {
		return
	}

	duration := executionDuration(execution)

	var event eventbus.Event

	if execution.Status == models.ExecutionStatusCompleted {
		event = events.WorkflowExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			JobID:       job.ID,
			NodeCount:   len(execution.NodeExecutions),
			Duration:    duration,
			Variables:   execution.Variables,
		}
	} else {
		event = events.WorkflowExecutionFailed{
			BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionFailedEvent, execution.WorkflowID),
			ExecutionID:  execution.ID,
			JobID:        job.ID,
			FailedNodeID: failedNodeID(execution),
			Error:        execution.Error,
			Duration:     duration,
		}
	}

	if err := p.publisher.Publish(ctx, execution.WorkflowID, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish execution event", "error", err)
	}
}

// failedExecution returns the record of a run the engine could not report itself.
func (p *Processor) failedExecution(wf *models.Workflow, cause error) *models.WorkflowExecution {
	now := time.Now().UTC()

	execution := &models.WorkflowExecution{
		ID:             uuid.New().String(),
		WorkflowID:     wf.ID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      now,
		NodeExecutions: []*models.NodeExecution{},
	}
	execution.Fail(now, cause)

	return execution
}

func executionDuration(execution *models.WorkflowExecution) time.Duration {
	if execution.CompletedAt == nil {
		return 0
	}

	return execution.CompletedAt.Sub(execution.StartedAt)
}

func failedNodeID(execution *models.WorkflowExecution) string {
	for i := len(execution.NodeExecutions) - 1; i >= 0; i-- {
		if execution.NodeExecutions[i].Status == models.NodeStatusFailed {
			return execution.NodeExecutions[i].NodeID
		}
	}

	return ""
}
