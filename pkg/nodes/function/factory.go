package function

import (
	"context"

	"github.com/flowmark/journey/pkg/protocol"
)

// FunctionNodeFactory creates FunctionNode instances.
type FunctionNodeFactory struct {
	resolver protocol.FunctionResolver
}

// NewFunctionNodeFactory creates a new function node factory.
func NewFunctionNodeFactory(resolver protocol.FunctionResolver) protocol.NodeFactory {
	return &FunctionNodeFactory{resolver: resolver}
}

// Create creates a new FunctionNode instance.
func (f *FunctionNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewFunctionNode(id, config, f.resolver)
}

// ID returns the factory ID.
func (f *FunctionNodeFactory) ID() string {
	return "function"
}

// Name returns the factory name.
func (f *FunctionNodeFactory) Name() string {
	return "Function"
}

// Description returns the factory description.
func (f *FunctionNodeFactory) Description() string {
	return "Runs a registered function or a template expression and stores its value under 'result'"
}

// Schema returns the JSON schema for function node configuration.
func (f *FunctionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"function": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name of a function registered with the worker",
				"examples":    []string{"score_lead"},
			},
			"expression": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Template evaluated against the workflow variables",
				"examples":    []string{`{"greeting": "Hello {{ .first_name }}"}`},
			},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"function"}},
			map[string]any{"required": []string{"expression"}},
		},
	}
}
