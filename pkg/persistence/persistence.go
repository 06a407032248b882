// Package persistence provides the storage abstraction for workflows and their execution records.
package persistence

import (
	"context"

	"github.com/flowmark/journey/pkg/models"
)

// WorkflowRepository looks workflows up by ID. FetchByID returns ErrWorkflowNotFound
// when no workflow has the given ID.
type WorkflowRepository interface {
	FetchByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// ExecutionRepository stores finished execution records for post-mortem inspection.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
