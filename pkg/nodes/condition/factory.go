package condition

import (
	"context"

	"github.com/flowmark/journey/pkg/protocol"
)

// ConditionNodeFactory creates ConditionNode instances.
type ConditionNodeFactory struct {
	resolver protocol.PredicateResolver
}

// NewConditionNodeFactory creates a new condition node factory.
func NewConditionNodeFactory(resolver protocol.PredicateResolver) protocol.NodeFactory {
	return &ConditionNodeFactory{resolver: resolver}
}

// Create creates a new ConditionNode instance.
func (f *ConditionNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionNode(id, config, f.resolver)
}

// ID returns the factory ID.
func (f *ConditionNodeFactory) ID() string {
	return "condition"
}

// Name returns the factory name.
func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

// Description returns the factory description.
func (f *ConditionNodeFactory) Description() string {
	return "Evaluates a condition and stores the boolean under 'result'; edges typed true/false follow it"
}

// Schema returns the JSON schema for condition node configuration.
func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Template evaluated against the workflow variables and converted to a boolean",
				"examples":    []string{"{{ gt .score 50 }}", `{{ eq .segment "vip" }}`},
			},
			"predicate": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name of a predicate registered with the worker",
			},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"condition"}},
			map[string]any{"required": []string{"predicate"}},
		},
	}
}
