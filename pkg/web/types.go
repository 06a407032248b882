// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/flowmark/journey/pkg/models"
)

// WorkflowJobRequest is one item of the POST /workflows batch.
type WorkflowJobRequest struct {
	ID       string           `json:"id"       validate:"required"`
	Workflow *models.Workflow `json:"workflow" validate:"required"`
}

// CronWorkflowRequest represents the request body for scheduling a recurring workflow.
type CronWorkflowRequest struct {
	ID             string           `json:"id"                 validate:"required"`
	Workflow       *models.Workflow `json:"workflow"           validate:"required"`
	CronExpression string           `json:"cronExpression"     validate:"required,cron"`
	Timezone       string           `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// MessageResponse is returned by endpoints that only acknowledge a request.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JobResponse is returned when a job was queued.
type JobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

// CronJobResponse echoes the effective schedule of a recurring job.
type CronJobResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	JobID          string `json:"jobId"`
	CronExpression string `json:"cronExpression"`
	Timezone       string `json:"timezone"`
}

// JobStatusResponse wraps the status of a queued job.
type JobStatusResponse struct {
	Success bool              `json:"success"`
	Status  *models.JobStatus `json:"status"`
}

// NodeTypeResponse describes a node type the engine can execute.
type NodeTypeResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}
