// Package workflow executes workflow graphs.
//
// The engine walks the graph depth-first from every start node (a node without
// incoming edges) using an explicit stack, so deep graphs never grow the Go stack.
// Each branch carries its own variable scope: a node sees the variables produced
// along the path that reached it, and its children see those plus its output.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/nodes/condition"
	"github.com/flowmark/journey/pkg/otelhelper"
	"github.com/flowmark/journey/pkg/protocol"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NodeCreator builds executable nodes from their workflow definition.
type NodeCreator interface {
	CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Node, error)
}

type Engine struct {
	creator           NodeCreator
	logger            *slog.Logger
	tracer            trace.Tracer
	maxNodeExecutions int
	now               func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMaxNodeExecutions caps the nodes one execution may run, which makes it a limit
// on graph size. Values below 1 leave the engine bounded by the graph itself.
func WithMaxNodeExecutions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxNodeExecutions = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(creator NodeCreator, opts ...Option) *Engine {
	e := &Engine{
		creator: creator,
		logger:  slog.Default(),
		tracer:  otelhelper.Tracer("github.com/flowmark/journey/pkg/workflow"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "workflow_engine")

	return e
}

// frame is a pending node visit together with the variables visible to it.
type frame struct {
	node  int
	scope map[string]any
}

// ExecuteWorkflow runs the workflow graph and returns its execution record.
//
// Node failures end the execution with status failed and are reported only in
// the record; the returned error is nil. Structural problems found before any
// node runs are returned as a *GraphValidationError along with a failed record.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflow *models.Workflow) (*models.WorkflowExecution, error) {
	if workflow == nil {
		return nil, fmt.Errorf("%w: workflow is required", ErrInvalidGraph)
	}

	execution := &models.WorkflowExecution{
		ID:             uuid.New().String(),
		WorkflowID:     workflow.ID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      e.now(),
		NodeExecutions: make([]*models.NodeExecution, 0, len(workflow.Nodes)),
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)
	logger.InfoContext(ctx, "Starting workflow execution", "nodes", len(workflow.Nodes), "edges", len(workflow.Edges))

	g, err := buildGraph(workflow)
	if err != nil {
		execution.Fail(e.now(), err)
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Workflow graph rejected", "error", err)

		return execution, err
	}

	wctx := models.NewWorkflowContext(workflow, execution)

	if err := e.traverse(ctx, g, wctx, logger); err != nil {
		execution.Fail(e.now(), err)
		execution.Variables = wctx.Variables
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Workflow execution failed",
			"error", err,
			"node_executions", len(execution.NodeExecutions),
		)

		return execution, nil
	}

	execution.Complete(e.now())
	execution.Variables = wctx.Variables

	logger.InfoContext(ctx, "Workflow execution completed",
		"node_executions", len(execution.NodeExecutions),
		"duration", execution.CompletedAt.Sub(execution.StartedAt),
	)

	return execution, nil
}

func (e *Engine) traverse(ctx context.Context, g *graph, wctx *models.WorkflowContext, logger *slog.Logger) error {
	starts := g.startNodes()

	// pushed in reverse so the first start node is popped first
	stack := make([]frame, 0, len(starts))
	for i := len(starts) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: starts[i], scope: map[string]any{}})
	}

	visited := make([]bool, len(g.nodes))
	visits := 0

	limit := len(g.nodes)
	if e.maxNodeExecutions > 0 && e.maxNodeExecutions < limit {
		limit = e.maxNodeExecutions
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execution cancelled: %w", err)
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// a join node runs once, with the scope of the first branch that reaches it
		if visited[current.node] {
			continue
		}

		visited[current.node] = true

		visits++
		if visits > limit {
			return fmt.Errorf("%w: limit is %d", ErrMaxNodeExecutions, limit)
		}

		node := g.nodes[current.node]

		output, err := e.executeNode(ctx, node, current.scope, wctx, logger)
		if err != nil {
			return fmt.Errorf("node %s failed: %w", node.ID, err)
		}

		wctx.Merge(output)

		edges := g.outgoing[current.node]
		if len(edges) == 0 {
			continue
		}

		childScope := make(map[string]any, len(current.scope)+len(output))
		maps.Copy(childScope, current.scope)
		maps.Copy(childScope, output)

		result, isCondition := conditionResult(node, output)

		for i := len(edges) - 1; i >= 0; i-- {
			edge := edges[i]

			if isCondition && !edge.FollowsOn(result) {
				logger.DebugContext(ctx, "Skipping edge", "edge_id", edge.ID, "edge_type", edge.Type, "condition", result)

				continue
			}

			target, ok := g.index[edge.Target]
			if !ok {
				return fmt.Errorf("%w: %s", ErrNodeNotFound, edge.Target)
			}

			stack = append(stack, frame{node: target, scope: childScope})
		}
	}

	return nil
}

// executeNode records a NodeExecution for node, runs it against scope and returns its output.
func (e *Engine) executeNode(
	ctx context.Context,
	node *models.WorkflowNode,
	scope map[string]any,
	wctx *models.WorkflowContext,
	logger *slog.Logger,
) (map[string]any, error) {
	record := &models.NodeExecution{
		NodeID:    node.ID,
		Status:    models.NodeStatusRunning,
		StartedAt: e.now(),
		Input:     maps.Clone(scope),
	}
	wctx.Execution.NodeExecutions = append(wctx.Execution.NodeExecutions, record)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.ExecutionIDKey, wctx.Execution.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	logger = logger.With("node_id", node.ID, "node_type", node.Type)
	logger.DebugContext(ctx, "Executing node")

	output, err := e.runNode(ctx, node, scope)
	completedAt := e.now()
	record.CompletedAt = &completedAt

	if err != nil {
		record.Status = models.NodeStatusFailed
		record.Error = err.Error()

		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Node execution failed", "error", err)

		return nil, err
	}

	if output == nil {
		output = map[string]any{}
	}

	record.Status = models.NodeStatusCompleted
	record.Output = output

	logger.DebugContext(ctx, "Node execution completed", "duration", record.Duration())

	return output, nil
}

func (e *Engine) runNode(ctx context.Context, node *models.WorkflowNode, scope map[string]any) (map[string]any, error) {
	if e.creator == nil {
		return nil, errors.New("no node registry configured")
	}

	instance, err := e.creator.CreateNode(ctx, node.Type, node.ID, node.Config())
	if err != nil {
		return nil, err
	}

	return instance.Execute(ctx, maps.Clone(scope))
}

// conditionResult returns the boolean a condition node produced. Edges leaving
// any other node type are never gated.
func conditionResult(node *models.WorkflowNode, output map[string]any) (bool, bool) {
	if node.Type != models.NodeTypeCondition {
		return false, false
	}

	return condition.Result(output)
}
