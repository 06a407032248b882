package workflow

import (
	"fmt"

	"github.com/flowmark/journey/pkg/models"
)

// graph is an indexed view of a workflow: nodes are addressed by their position in
// the node list and edges are grouped per source in edge-list order.
type graph struct {
	nodes    []*models.WorkflowNode
	index    map[string]int
	outgoing [][]*models.WorkflowEdge
	indegree []int
}

// buildGraph indexes the workflow and validates its structure. All problems are
// collected into a single GraphValidationError.
func buildGraph(workflow *models.Workflow) (*graph, error) {
	g := &graph{
		nodes:    make([]*models.WorkflowNode, 0, len(workflow.Nodes)),
		index:    make(map[string]int, len(workflow.Nodes)),
		outgoing: make([][]*models.WorkflowEdge, len(workflow.Nodes)),
		indegree: make([]int, len(workflow.Nodes)),
	}

	var problems []string

	for i, node := range workflow.Nodes {
		switch {
		case node == nil:
			problems = append(problems, fmt.Sprintf("node at position %d is null", i))
		case node.ID == "":
			problems = append(problems, fmt.Sprintf("node at position %d has an empty ID", i))
		default:
			if _, exists := g.index[node.ID]; exists {
				problems = append(problems, fmt.Sprintf("duplicate node ID %q", node.ID))

				continue
			}

			g.index[node.ID] = len(g.nodes)
		}

		g.nodes = append(g.nodes, node)
	}

	for i, edge := range workflow.Edges {
		if edge == nil {
			problems = append(problems, fmt.Sprintf("edge at position %d is null", i))

			continue
		}

		source, sourceOK := g.index[edge.Source]
		if !sourceOK {
			problems = append(problems, fmt.Sprintf("edge %q references non-existent source node %q", edge.ID, edge.Source))
		}

		target, targetOK := g.index[edge.Target]
		if !targetOK {
			problems = append(problems, fmt.Sprintf("edge %q references non-existent target node %q", edge.ID, edge.Target))
		}

		if sourceOK && targetOK {
			g.outgoing[source] = append(g.outgoing[source], edge)
			g.indegree[target]++
		}
	}

	if len(problems) > 0 {
		return nil, &GraphValidationError{WorkflowID: workflow.ID, Problems: problems}
	}

	if cycle := g.findCycle(); cycle != "" {
		return nil, &GraphValidationError{
			WorkflowID: workflow.ID,
			Problems:   []string{fmt.Sprintf("%s at node %q", ErrCycleDetected, cycle)},
			cycle:      true,
		}
	}

	return g, nil
}

// startNodes returns the indexes of nodes without incoming edges in declaration order.
func (g *graph) startNodes() []int {
	starts := make([]int, 0)

	for i := range g.nodes {
		if g.indegree[i] == 0 {
			starts = append(starts, i)
		}
	}

	return starts
}

// findCycle runs an iterative three-colour DFS and returns the ID of a node on a
// cycle, or "" when the graph is acyclic.
func (g *graph) findCycle() string {
	const (
		white = iota
		grey
		black
	)

	type frame struct {
		node int
		next int
	}

	colour := make([]int, len(g.nodes))

	for root := range g.nodes {
		if colour[root] != white {
			continue
		}

		colour[root] = grey
		stack := []frame{{node: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]

			if top.next == len(g.outgoing[top.node]) {
				colour[top.node] = black
				stack = stack[:len(stack)-1]

				continue
			}

			target := g.index[g.outgoing[top.node][top.next].Target]
			top.next++

			switch colour[target] {
			case grey:
				return g.nodes[target].ID
			case white:
				colour[target] = grey
				stack = append(stack, frame{node: target})
			}
		}
	}

	return ""
}

// ValidateGraph runs the structural checks ExecuteWorkflow performs before any node
// runs. Structural problems are reported as a *GraphValidationError.
func ValidateGraph(workflow *models.Workflow) error {
	if workflow == nil {
		return fmt.Errorf("%w: workflow is required", ErrInvalidGraph)
	}

	_, err := buildGraph(workflow)

	return err
}
