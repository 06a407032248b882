// Package function provides the function node, which runs a registered handler or
// a template expression against the workflow variables.
package function

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowmark/journey/pkg/protocol"
	"github.com/flowmark/journey/pkg/template"
)

// OutputKey is the context key the function result is stored under.
const OutputKey = "result"

var ErrMissingFunction = errors.New("function node requires 'function' or 'expression'")

// FunctionNode invokes a named function or evaluates an expression.
type FunctionNode struct {
	id         string
	name       string
	expression string
	fn         protocol.Function
}

// NewFunctionNode creates a function node. A 'function' name must resolve against
// resolver; otherwise 'expression' is rendered as a template.
func NewFunctionNode(id string, config map[string]any, resolver protocol.FunctionResolver) (*FunctionNode, error) {
	node := &FunctionNode{id: id}

	if name, ok := config["function"].(string); ok && name != "" {
		if resolver == nil {
			return nil, fmt.Errorf("function %q is not registered", name)
		}

		fn, found := resolver.Function(name)
		if !found {
			return nil, fmt.Errorf("function %q is not registered", name)
		}

		node.name = name
		node.fn = fn

		return node, nil
	}

	if expression, ok := config["expression"].(string); ok && expression != "" {
		node.expression = expression

		return node, nil
	}

	return nil, ErrMissingFunction
}

// ID returns the node ID.
func (n *FunctionNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *FunctionNode) Type() string {
	return "function"
}

// Execute calls the function with the visible variables.
func (n *FunctionNode) Execute(ctx context.Context, variables map[string]any) (map[string]any, error) {
	if n.fn != nil {
		result, err := n.fn(ctx, variables)
		if err != nil {
			return nil, fmt.Errorf("function %q failed: %w", n.name, err)
		}

		return map[string]any{OutputKey: result}, nil
	}

	result, err := template.RenderWithVariables(n.expression, variables)
	if err != nil {
		return nil, err
	}

	return map[string]any{OutputKey: result}, nil
}
