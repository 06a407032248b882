package workflow

import (
	"errors"
	"strings"

	"github.com/flowmark/journey/pkg/registry"
)

var (
	ErrInvalidGraph        = errors.New("invalid workflow graph")
	ErrCycleDetected       = errors.New("cycle detected")
	ErrNodeNotFound        = errors.New("node not found")
	ErrUnsupportedNodeType = registry.ErrUnsupportedNodeType
	ErrMaxNodeExecutions   = errors.New("maximum node executions exceeded")
)

// GraphValidationError lists every structural problem found in a workflow graph
// before execution starts.
type GraphValidationError struct {
	WorkflowID string
	Problems   []string
	cycle      bool
}

func (e *GraphValidationError) Error() string {
	return "invalid workflow graph " + e.WorkflowID + ": " + strings.Join(e.Problems, "; ")
}

// Is matches ErrInvalidGraph, and ErrCycleDetected when a cycle was one of the problems.
func (e *GraphValidationError) Is(target error) bool {
	if target == ErrInvalidGraph {
		return true
	}

	return e.cycle && target == ErrCycleDetected
}

func IsInvalidGraph(err error) bool {
	return errors.Is(err, ErrInvalidGraph)
}
