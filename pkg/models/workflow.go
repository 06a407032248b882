// Package models defines the core domain models for graph-based journey workflows
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
	WorkflowStatusRunning  WorkflowStatus = "running"
	WorkflowStatusFailed   WorkflowStatus = "failed"
)

// TriggerType describes how a workflow is started.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeSchedule TriggerType = "schedule"
)

// WorkflowTrigger describes how a workflow is started. CronExpression and Timezone
// are only meaningful for schedule triggers.
type WorkflowTrigger struct {
	Type           TriggerType `json:"type"                     validate:"omitempty,oneof=manual schedule"`
	CronExpression string      `json:"cronExpression,omitempty"`
	Timezone       string      `json:"timezone,omitempty"`
}

// Workflow represents a directed graph of nodes connected by edges.
type Workflow struct {
	ID        string          `json:"id"        validate:"required"`
	Name      string          `json:"name"`
	Nodes     []*WorkflowNode `json:"nodes"     validate:"dive"`
	Edges     []*WorkflowEdge `json:"edges"     validate:"dive"`
	Trigger   WorkflowTrigger `json:"trigger"`
	Status    WorkflowStatus  `json:"status,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NodeByID returns the node with the given ID, if present.
func (w *Workflow) NodeByID(id string) (*WorkflowNode, bool) {
	for _, node := range w.Nodes {
		if node != nil && node.ID == id {
			return node, true
		}
	}

	return nil, false
}
