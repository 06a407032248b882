// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/flowmark/journey/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test WorkflowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:       uuid.New().String(),
		Type:     models.NodeTypeFunction,
		Position: models.Position{X: 100, Y: 200},
		Data: models.NodeData{
			Label:  "Test Node",
			Config: map[string]any{"expression": "ok"},
		},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithHTTPRequest configures the node as an http node calling url.
func WithHTTPRequest(url string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeHTTP
		n.Data.Config = map[string]any{"url": url, "method": "GET"}
	}
}

// WithFunction configures the node to call a registered function.
func WithFunction(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeFunction
		n.Data.Config = map[string]any{"function": name}
	}
}

// WithExpression configures the node as a function node rendering expr.
func WithExpression(expr string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeFunction
		n.Data.Config = map[string]any{"expression": expr}
	}
}

// WithPredicate configures the node as a condition node evaluating a registered predicate.
func WithPredicate(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeCondition
		n.Data.Config = map[string]any{"predicate": name}
	}
}

// WithCondition configures the node as a condition node evaluating expr.
func WithCondition(expr string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeCondition
		n.Data.Config = map[string]any{"condition": expr}
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Data.Config = config
	}
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Data.Label = label
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
	}
}

// WithID sets the node ID.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// CreateTestEdge creates an untyped edge between two nodes.
func CreateTestEdge(source, target string) *models.WorkflowEdge {
	return &models.WorkflowEdge{
		ID:     source + "->" + target,
		Source: source,
		Target: target,
	}
}

// CreateTypedEdge creates an edge gated by a condition result label such as "true" or "no".
func CreateTypedEdge(source, target, edgeType string) *models.WorkflowEdge {
	edge := CreateTestEdge(source, target)
	edge.Type = edgeType

	return edge
}

// CreateTestWorkflow creates an active workflow holding nodes and edges.
func CreateTestWorkflow(nodes []*models.WorkflowNode, edges ...*models.WorkflowEdge) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		Nodes:     nodes,
		Edges:     edges,
		Trigger:   models.WorkflowTrigger{Type: models.TriggerTypeManual},
		Status:    models.WorkflowStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateLinearWorkflow chains the given nodes in order.
func CreateLinearWorkflow(nodes ...*models.WorkflowNode) *models.Workflow {
	edges := make([]*models.WorkflowEdge, 0, len(nodes))
	for i := 1; i < len(nodes); i++ {
		edges = append(edges, CreateTestEdge(nodes[i-1].ID, nodes[i].ID))
	}

	return CreateTestWorkflow(nodes, edges...)
}
