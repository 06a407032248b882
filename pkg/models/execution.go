package models

import (
	"maps"
	"time"
)

// ExecutionStatus represents the state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// WorkflowExecution is the record of a single engine run.
type WorkflowExecution struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflowId"`
	Status         ExecutionStatus  `json:"status"`
	StartedAt      time.Time        `json:"startedAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	Error          string           `json:"error,omitempty"`
	NodeExecutions []*NodeExecution `json:"nodeExecutions"`
	Variables      map[string]any   `json:"variables,omitempty"`
}

// Complete marks the execution as completed.
func (e *WorkflowExecution) Complete(at time.Time) {
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &at
}

// Fail marks the execution as failed with the given error.
func (e *WorkflowExecution) Fail(at time.Time, err error) {
	e.Status = ExecutionStatusFailed
	e.Error = err.Error()
	e.CompletedAt = &at
}

// NodeExecution is the record of one node visit within an execution.
type NodeExecution struct {
	NodeID      string         `json:"nodeId"`
	Status      NodeStatus     `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Input       map[string]any `json:"input"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Duration returns how long the node ran, or zero while it is still running.
func (n *NodeExecution) Duration() time.Duration {
	if n.CompletedAt == nil {
		return 0
	}

	return n.CompletedAt.Sub(n.StartedAt)
}

// WorkflowContext is the state shared by the nodes of one execution.
type WorkflowContext struct {
	Workflow  *Workflow
	Execution *WorkflowExecution
	Variables map[string]any
}

// NewWorkflowContext creates a context with empty variables.
func NewWorkflowContext(workflow *Workflow, execution *WorkflowExecution) *WorkflowContext {
	return &WorkflowContext{
		Workflow:  workflow,
		Execution: execution,
		Variables: make(map[string]any),
	}
}

// Merge shallow-merges output into the context variables. Later values win.
func (c *WorkflowContext) Merge(output map[string]any) {
	maps.Copy(c.Variables, output)
}
