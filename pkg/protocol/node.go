// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"
)

// Node is a configured, executable node instance.
type Node interface {
	// ID returns the workflow node ID this instance was created for
	ID() string

	// Type returns the node type
	Type() string

	// Execute runs the node against the variables visible to it and returns
	// the key/value pairs it adds to the workflow context
	Execute(ctx context.Context, variables map[string]any) (map[string]any, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the unique identifier for this node type
	ID() string

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
