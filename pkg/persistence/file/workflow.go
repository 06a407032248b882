package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/persistence"
	json "github.com/goccy/go-json"
)

// WorkflowRepository stores each workflow as workflows/<id>.json under root.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// FetchByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) FetchByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	if err := validateID(workflowID); err != nil {
		return nil, persistence.NewWorkflowError("FetchByID", workflowID, err)
	}

	filePath := filepath.Join(wr.root, workflowsDir, workflowID+".json")

	body, err := os.ReadFile(filePath) // #nosec G304 -- workflowID is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("FetchByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err := os.MkdirAll(filepath.Join(wr.root, workflowsDir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	return os.WriteFile(filepath.Join(wr.root, workflowsDir, workflow.ID+".json"), data, 0600)
}
