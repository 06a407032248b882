// Package condition provides the condition node. Its boolean result is recorded in
// the workflow context and gates edges typed "true"/"yes" or "false"/"no".
package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowmark/journey/pkg/protocol"
	"github.com/flowmark/journey/pkg/template"
)

// OutputKey is the context key the boolean result is stored under.
const OutputKey = "result"

var ErrMissingCondition = errors.New("condition node requires 'condition' or 'predicate'")

// ConditionNode evaluates a predicate or a template condition.
type ConditionNode struct {
	id        string
	name      string
	condition string
	predicate protocol.Predicate
}

// NewConditionNode creates a condition node. A 'predicate' name must resolve
// against resolver; otherwise 'condition' is rendered and converted to a boolean.
func NewConditionNode(id string, config map[string]any, resolver protocol.PredicateResolver) (*ConditionNode, error) {
	node := &ConditionNode{id: id}

	if name, ok := config["predicate"].(string); ok && name != "" {
		if resolver == nil {
			return nil, fmt.Errorf("predicate %q is not registered", name)
		}

		predicate, found := resolver.Predicate(name)
		if !found {
			return nil, fmt.Errorf("predicate %q is not registered", name)
		}

		node.name = name
		node.predicate = predicate

		return node, nil
	}

	if condition, ok := config["condition"].(string); ok && condition != "" {
		node.condition = condition

		return node, nil
	}

	return nil, ErrMissingCondition
}

// ID returns the node ID.
func (n *ConditionNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *ConditionNode) Type() string {
	return "condition"
}

// Execute evaluates the condition.
func (n *ConditionNode) Execute(ctx context.Context, variables map[string]any) (map[string]any, error) {
	if n.predicate != nil {
		result, err := n.predicate(ctx, variables)
		if err != nil {
			return nil, fmt.Errorf("predicate %q failed: %w", n.name, err)
		}

		return map[string]any{OutputKey: result}, nil
	}

	value, err := template.RenderWithVariables(n.condition, variables)
	if err != nil {
		return nil, fmt.Errorf("condition evaluation failed: %w", err)
	}

	return map[string]any{OutputKey: template.Truthy(value)}, nil
}

// Result extracts the boolean a condition node stored in its output.
func Result(output map[string]any) (bool, bool) {
	result, ok := output[OutputKey].(bool)

	return result, ok
}
