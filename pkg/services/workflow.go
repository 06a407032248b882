package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/persistence"
	"github.com/flowmark/journey/pkg/queue"
	"github.com/flowmark/journey/pkg/workflow"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrJobNotFound is returned when the queue does not know a job.
	ErrJobNotFound = queue.ErrJobNotFound
)

// JobQueue is the part of queue.Queue the workflow service depends on.
type JobQueue interface {
	Add(ctx context.Context, name string, data any, opts *queue.JobOptions) (*queue.Job, error)
	GetJob(ctx context.Context, id string) (*queue.Job, error)
	Ping(ctx context.Context) error
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Workflow turns front-door requests into queue jobs.
type Workflow struct {
	workflows persistence.WorkflowRepository
	queue     JobQueue
	health    HealthChecker
	logger    *slog.Logger
}

// NewWorkflow creates a new workflow service. health may be nil when no
// persistence layer is configured.
func NewWorkflow(workflows persistence.WorkflowRepository, jobQueue JobQueue, health HealthChecker, logger *slog.Logger) *Workflow {
	return &Workflow{
		workflows: workflows,
		queue:     jobQueue,
		health:    health,
		logger:    logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the queue and persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if err := w.queue.Ping(ctx); err != nil {
		return "Queue is unhealthy: " + err.Error(), false
	}

	if w.health == nil {
		return "Queue is healthy, persistence layer not configured", true
	}

	if err := w.health.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Queue and persistence layer are healthy", true
}

// ProcessWorkflow fetches the workflow and enqueues a single-item process-workflow job.
func (w *Workflow) ProcessWorkflow(ctx context.Context, id string) (*queue.Job, error) {
	if id == "" {
		return nil, NewValidationError("ProcessWorkflow", "MISSING_ID", "workflow id is required", ErrInvalidRequest)
	}

	if w.workflows == nil {
		return nil, persistence.NewWorkflowError("FetchByID", id, ErrWorkflowNotFound)
	}

	wf, err := w.workflows.FetchByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow: %w", err)
	}

	job, err := w.queue.Add(ctx, models.JobProcessWorkflow, []models.WorkflowJob{{ID: id, Workflow: wf}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue workflow %s: %w", id, err)
	}

	w.logger.InfoContext(ctx, "Workflow queued", "workflow_id", id, "job_id", job.ID)

	return job, nil
}

// ProcessWorkflows validates the batch and enqueues it as one process-workflows job.
func (w *Workflow) ProcessWorkflows(ctx context.Context, jobs []models.WorkflowJob) (*queue.Job, error) {
	if len(jobs) == 0 {
		return nil, NewValidationError("ProcessWorkflows", "EMPTY_BATCH", "", ErrEmptyBatch)
	}

	for i, item := range jobs {
		if item.ID == "" {
			return nil, NewValidationError("ProcessWorkflows", "MISSING_ID",
				fmt.Sprintf("jobs[%d]: id is required", i), ErrInvalidRequest)
		}

		if item.Workflow == nil {
			return nil, NewValidationError("ProcessWorkflows", "MISSING_WORKFLOW",
				fmt.Sprintf("jobs[%d]: workflow is required", i), ErrWorkflowRequired)
		}

		if err := workflow.ValidateGraph(item.Workflow); err != nil {
			return nil, NewValidationError("ProcessWorkflows", "INVALID_GRAPH",
				fmt.Sprintf("jobs[%d]: %v", i, err), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		}
	}

	job, err := w.queue.Add(ctx, models.JobProcessWorkflows, jobs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue workflows: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow batch queued", "job_id", job.ID, "count", len(jobs))

	return job, nil
}

// ProcessCronWorkflow registers a recurring process-cron-workflow job keyed by id,
// which defaults to the workflow ID. An empty timezone means UTC. The returned
// timezone is the one the schedule uses.
func (w *Workflow) ProcessCronWorkflow(
	ctx context.Context,
	id string,
	wf *models.Workflow,
	cronExpression, timezone string,
) (*queue.Job, string, error) {
	if wf == nil || wf.ID == "" {
		return nil, "", NewValidationError("ProcessCronWorkflow", "MISSING_WORKFLOW", "workflow.id is required", ErrWorkflowRequired)
	}

	if cronExpression == "" {
		return nil, "", NewValidationError("ProcessCronWorkflow", "MISSING_CRON", "cronExpression is required", ErrInvalidCronExpression)
	}

	if err := models.ValidateCronExpression(cronExpression); err != nil {
		return nil, "", NewValidationError("ProcessCronWorkflow", "INVALID_CRON", err.Error(), ErrInvalidCronExpression)
	}

	tz, err := models.ResolveTimezone(timezone)
	if err != nil {
		return nil, "", NewValidationError("ProcessCronWorkflow", "INVALID_TIMEZONE", err.Error(), ErrInvalidTimezone)
	}

	if err := workflow.ValidateGraph(wf); err != nil {
		return nil, "", NewValidationError("ProcessCronWorkflow", "INVALID_GRAPH", err.Error(),
			fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	if id == "" {
		id = wf.ID
	}

	payload := models.CronWorkflowJob{
		ID:             id,
		Workflow:       wf,
		CronExpression: cronExpression,
		Timezone:       tz,
	}

	job, err := w.queue.Add(ctx, models.JobProcessCronWorkflow, payload, &queue.JobOptions{
		Repeat: &queue.RepeatOptions{Pattern: cronExpression, TZ: tz},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to schedule workflow %s: %w", wf.ID, err)
	}

	w.logger.InfoContext(ctx, "Workflow scheduled",
		"schedule_id", id,
		"workflow_id", wf.ID,
		"job_id", job.ID,
		"cron", cronExpression,
		"timezone", tz,
	)

	return job, tz, nil
}

// GetJobStatus returns the externally visible state of a job.
func (w *Workflow) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	job, err := w.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &models.JobStatus{
		ID:       job.ID,
		Status:   string(job.State),
		Progress: job.Progress,
		Result:   job.FinishedOn,
		Error:    job.FailedReason,
	}, nil
}
