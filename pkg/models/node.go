package models

// Built-in node types executed by the engine. Other types may appear in stored
// graphs (the journey builder knows more) but are rejected at execution time.
const (
	NodeTypeHTTP      = "http"
	NodeTypeFunction  = "function"
	NodeTypeCondition = "condition"
)

// Edge types that gate traversal after a condition node. Any other edge type is
// always followed.
const (
	EdgeTypeTrue  = "true"
	EdgeTypeYes   = "yes"
	EdgeTypeFalse = "false"
	EdgeTypeNo    = "no"
)

// Position is the node's location on the builder canvas. It has no effect on execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the node's execution parameters.
type NodeData struct {
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config"`
}

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID       string   `json:"id"       validate:"required"`
	Type     string   `json:"type"     validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Config returns the node configuration, never nil.
func (n *WorkflowNode) Config() map[string]any {
	if n.Data.Config == nil {
		return map[string]any{}
	}

	return n.Data.Config
}

// WorkflowEdge connects two nodes by ID.
type WorkflowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"         validate:"required"`
	Target string `json:"target"         validate:"required"`
	Type   string `json:"type,omitempty"`
}

// FollowsOn reports whether the edge should be traversed given the boolean
// produced by its source node. Untyped edges are always followed.
func (e *WorkflowEdge) FollowsOn(result bool) bool {
	switch e.Type {
	case EdgeTypeTrue, EdgeTypeYes:
		return result
	case EdgeTypeFalse, EdgeTypeNo:
		return !result
	default:
		return true
	}
}

// IsConditional reports whether the edge is gated by a condition result.
func (e *WorkflowEdge) IsConditional() bool {
	switch e.Type {
	case EdgeTypeTrue, EdgeTypeYes, EdgeTypeFalse, EdgeTypeNo:
		return true
	default:
		return false
	}
}
