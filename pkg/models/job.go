package models

import "time"

// Job names understood by the workflow processor.
const (
	JobProcessWorkflow     = "process-workflow"
	JobProcessWorkflows    = "process-workflows"
	JobProcessCronWorkflow = "process-cron-workflow"
)

// WorkflowJob is one unit of batch work.
type WorkflowJob struct {
	ID       string    `json:"id"       validate:"required"`
	Workflow *Workflow `json:"workflow" validate:"required"`
}

// CronWorkflowJob is the payload of a recurring workflow job.
type CronWorkflowJob struct {
	ID             string    `json:"id"`
	Workflow       *Workflow `json:"workflow"`
	CronExpression string    `json:"cronExpression"`
	Timezone       string    `json:"timezone"`
}

// JobStatus is the externally visible state of a queued job.
type JobStatus struct {
	ID       string     `json:"id"`
	Status   string     `json:"status"`
	Progress int        `json:"progress"`
	Result   *time.Time `json:"result"`
	Error    string     `json:"error,omitempty"`
}

// ExecutionResult is returned by a job that ran a single workflow.
type ExecutionResult struct {
	Success   bool               `json:"success"`
	Execution *WorkflowExecution `json:"execution"`
}

// ExecutionsResult is returned by a job that ran one or more workflows.
type ExecutionsResult struct {
	Success    bool                 `json:"success"`
	Executions []*WorkflowExecution `json:"executions"`
}
