// Package events defines event types and structures for job and workflow execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "journey.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Queue job lifecycle events.
	JobCompletedEvent EventType = "job.completed"
	JobFailedEvent    EventType = "job.failed"

	// Workflow execution lifecycle events.
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent returns a BaseEvent with a fresh ID and the current UTC time.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type JobCompleted struct {
	BaseEvent

	JobID        string         `json:"job_id"`
	JobName      string         `json:"job_name"`
	AttemptsMade int            `json:"attempts_made"`
	Duration     time.Duration  `json:"duration"`
	Result       map[string]any `json:"result,omitempty"`
}

func (j JobCompleted) GetType() EventType {
	return JobCompletedEvent
}

type JobFailed struct {
	BaseEvent

	JobID        string `json:"job_id"`
	JobName      string `json:"job_name"`
	AttemptsMade int    `json:"attempts_made"`
	Error        string `json:"error"`
}

func (j JobFailed) GetType() EventType {
	return JobFailedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	JobID       string         `json:"job_id,omitempty"`
	NodeCount   int            `json:"node_count"`
	Duration    time.Duration  `json:"duration"`
	Variables   map[string]any `json:"variables,omitempty"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID  string        `json:"execution_id"`
	JobID        string        `json:"job_id,omitempty"`
	FailedNodeID string        `json:"failed_node_id,omitempty"`
	Error        string        `json:"error"`
	Duration     time.Duration `json:"duration"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}
