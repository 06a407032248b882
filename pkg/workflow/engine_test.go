package workflow

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/protocol"
	"github.com/flowmark/journey/pkg/registry"
	"github.com/flowmark/journey/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticNode returns the "output" map from its config.
type staticNode struct {
	id     string
	output map[string]any
	fail   string
}

func (n *staticNode) ID() string   { return n.id }
func (n *staticNode) Type() string { return "static" }

func (n *staticNode) Execute(context.Context, map[string]any) (map[string]any, error) {
	if n.fail != "" {
		return nil, errors.New(n.fail)
	}

	return n.output, nil
}

type staticFactory struct{}

func (staticFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	output, _ := config["output"].(map[string]any)
	fail, _ := config["fail"].(string)

	return &staticNode{id: id, output: output, fail: fail}, nil
}

func (staticFactory) ID() string             { return "static" }
func (staticFactory) Name() string           { return "Static" }
func (staticFactory) Description() string    { return "Returns a fixed output" }
func (staticFactory) Schema() map[string]any { return nil }

func newTestRegistry(client *http.Client) *registry.Registry {
	r := registry.NewRegistry(slog.Default())
	r.RegisterDefaultNodes(client)
	r.RegisterNode(staticFactory{})

	return r
}

func staticNodeWith(id string, output map[string]any) *models.WorkflowNode {
	return testutil.CreateTestNode(
		testutil.WithID(id),
		testutil.WithType("static"),
		testutil.WithConfig(map[string]any{"output": output}),
	)
}

func failingNode(id, message string) *models.WorkflowNode {
	return testutil.CreateTestNode(
		testutil.WithID(id),
		testutil.WithType("static"),
		testutil.WithConfig(map[string]any{"fail": message}),
	)
}

func executedIDs(execution *models.WorkflowExecution) []string {
	ids := make([]string, 0, len(execution.NodeExecutions))
	for _, ne := range execution.NodeExecutions {
		ids = append(ids, ne.NodeID)
	}

	return ids
}

func TestEngine_ExecuteWorkflow_LinearChain(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateLinearWorkflow(
		staticNodeWith("a", map[string]any{"x": 1}),
		staticNodeWith("b", map[string]any{"y": 2}),
		staticNodeWith("c", map[string]any{"x": 3}),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, workflow.ID, execution.WorkflowID)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotNil(t, execution.CompletedAt)
	assert.Empty(t, execution.Error)
	assert.Equal(t, []string{"a", "b", "c"}, executedIDs(execution))
	assert.Equal(t, map[string]any{"x": 3, "y": 2}, execution.Variables)

	for _, ne := range execution.NodeExecutions {
		assert.Equal(t, models.NodeStatusCompleted, ne.Status)
		assert.NotNil(t, ne.CompletedAt)
	}
}

func TestEngine_ExecuteWorkflow_StartNodes(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	// declaration order: c, a, b, d; a and d have no incoming edges
	nodes := []*models.WorkflowNode{
		staticNodeWith("c", nil),
		staticNodeWith("a", nil),
		staticNodeWith("b", nil),
		staticNodeWith("d", nil),
	}
	workflow := testutil.CreateTestWorkflow(nodes,
		testutil.CreateTestEdge("a", "b"),
		testutil.CreateTestEdge("b", "c"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, executedIDs(execution))
}

func TestEngine_ExecuteWorkflow_DepthFirstEdgeOrder(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	//     root
	//    /    \
	//   l1     r1
	//   |
	//   l2
	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			staticNodeWith("root", nil),
			staticNodeWith("r1", nil),
			staticNodeWith("l1", nil),
			staticNodeWith("l2", nil),
		},
		testutil.CreateTestEdge("root", "l1"),
		testutil.CreateTestEdge("root", "r1"),
		testutil.CreateTestEdge("l1", "l2"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, []string{"root", "l1", "l2", "r1"}, executedIDs(execution))
}

func TestEngine_ExecuteWorkflow_EveryNodeOfDAGRunsOnce(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	// diamond: a -> b -> d, a -> c -> d
	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			staticNodeWith("a", map[string]any{"from": "a"}),
			staticNodeWith("b", map[string]any{"from": "b"}),
			staticNodeWith("c", map[string]any{"from": "c"}),
			staticNodeWith("d", nil),
		},
		testutil.CreateTestEdge("a", "b"),
		testutil.CreateTestEdge("a", "c"),
		testutil.CreateTestEdge("b", "d"),
		testutil.CreateTestEdge("c", "d"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	require.Len(t, execution.NodeExecutions, len(workflow.Nodes))
	assert.Equal(t, []string{"a", "b", "d", "c"}, executedIDs(execution))

	for _, ne := range execution.NodeExecutions {
		assert.Equal(t, models.NodeStatusCompleted, ne.Status)
	}

	// d ran on the first branch to reach it
	assert.Equal(t, "b", execution.NodeExecutions[2].Input["from"])
}

func TestEngine_ExecuteWorkflow_ContextPropagation(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateLinearWorkflow(
		staticNodeWith("a", map[string]any{"x": 1}),
		staticNodeWith("b", map[string]any{"y": 2}),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	require.Len(t, execution.NodeExecutions, 2)
	assert.Empty(t, execution.NodeExecutions[0].Input)
	assert.Equal(t, map[string]any{"x": 1}, execution.NodeExecutions[1].Input)
	assert.Equal(t, map[string]any{"y": 2}, execution.NodeExecutions[1].Output)
}

func TestEngine_ExecuteWorkflow_BranchLocalScopes(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			staticNodeWith("root", map[string]any{"shared": true}),
			staticNodeWith("left", map[string]any{"left": true}),
			staticNodeWith("right", nil),
		},
		testutil.CreateTestEdge("root", "left"),
		testutil.CreateTestEdge("root", "right"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	right := execution.NodeExecutions[2]
	assert.Equal(t, "right", right.NodeID)
	assert.Equal(t, map[string]any{"shared": true}, right.Input)

	// the execution-wide variables still see every output
	assert.Equal(t, true, execution.Variables["left"])
}

func TestEngine_ExecuteWorkflow_FailureKeepsPartialRecords(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateLinearWorkflow(
		staticNodeWith("a", map[string]any{"x": 1}),
		failingNode("b", "boom"),
		staticNodeWith("c", nil),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.NotNil(t, execution.CompletedAt)
	assert.Contains(t, execution.Error, "boom")

	require.Equal(t, []string{"a", "b"}, executedIDs(execution))
	assert.Equal(t, models.NodeStatusCompleted, execution.NodeExecutions[0].Status)
	assert.Equal(t, map[string]any{"x": 1}, execution.NodeExecutions[0].Output)
	assert.Equal(t, models.NodeStatusFailed, execution.NodeExecutions[1].Status)
	assert.Equal(t, "boom", execution.NodeExecutions[1].Error)
	assert.NotNil(t, execution.NodeExecutions[1].CompletedAt)
}

func TestEngine_ExecuteWorkflow_MissingURLMakesNoCalls(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	engine := NewEngine(newTestRegistry(server.Client()))

	workflow := testutil.CreateLinearWorkflow(
		testutil.CreateTestNode(
			testutil.WithID("call"),
			testutil.WithType(models.NodeTypeHTTP),
			testutil.WithConfig(map[string]any{"method": "GET"}),
		),
		testutil.CreateTestNode(testutil.WithID("next"), testutil.WithHTTPRequest(server.URL)),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.NodeExecutions, 1)
	assert.Equal(t, models.NodeStatusFailed, execution.NodeExecutions[0].Status)
	assert.Contains(t, execution.NodeExecutions[0].Error, "url")
	assert.Equal(t, int32(0), calls.Load())
}

func TestEngine_ExecuteWorkflow_UnsupportedNodeType(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateLinearWorkflow(
		testutil.CreateTestNode(testutil.WithID("mail"), testutil.WithType("email")),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "unsupported node type")
	assert.Equal(t, models.NodeStatusFailed, execution.NodeExecutions[0].Status)
}

func TestEngine_ExecuteWorkflow_EmptyWorkflow(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	execution, err := engine.ExecuteWorkflow(context.Background(), testutil.CreateTestWorkflow(nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, execution.NodeExecutions)
}

func TestEngine_ExecuteWorkflow_NilWorkflow(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	execution, err := engine.ExecuteWorkflow(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidGraph)
	assert.Nil(t, execution)
}

func TestEngine_ExecuteWorkflow_InvalidGraph(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{staticNodeWith("a", nil)},
		testutil.CreateTestEdge("a", "ghost"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.Error(t, err)

	var graphErr *GraphValidationError
	require.ErrorAs(t, err, &graphErr)
	assert.True(t, IsInvalidGraph(err))

	require.NotNil(t, execution)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Empty(t, execution.NodeExecutions)
	assert.Contains(t, execution.Error, "ghost")
}

func TestEngine_ExecuteWorkflow_CycleRejected(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			staticNodeWith("start", nil),
			staticNodeWith("a", nil),
			staticNodeWith("b", nil),
		},
		testutil.CreateTestEdge("start", "a"),
		testutil.CreateTestEdge("a", "b"),
		testutil.CreateTestEdge("b", "a"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "cycle detected")
}

func TestEngine_ExecuteWorkflow_MaxNodeExecutions(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil), WithMaxNodeExecutions(2))

	workflow := testutil.CreateLinearWorkflow(
		staticNodeWith("a", nil),
		staticNodeWith("b", nil),
		staticNodeWith("c", nil),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, ErrMaxNodeExecutions.Error())
	assert.Len(t, execution.NodeExecutions, 2)
}

func TestEngine_ExecuteWorkflow_LargeChainHasNoDefaultCap(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	nodes := make([]*models.WorkflowNode, 1500)
	for i := range nodes {
		nodes[i] = staticNodeWith("n"+strconv.Itoa(i), nil)
	}

	execution, err := engine.ExecuteWorkflow(context.Background(), testutil.CreateLinearWorkflow(nodes...))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status, execution.Error)
	assert.Len(t, execution.NodeExecutions, 1500)
}

func TestEngine_ExecuteWorkflow_CancelledContext(t *testing.T) {
	engine := NewEngine(newTestRegistry(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	execution, err := engine.ExecuteWorkflow(ctx, testutil.CreateLinearWorkflow(staticNodeWith("a", nil)))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "context canceled")
	assert.Empty(t, execution.NodeExecutions)
}

func TestEngine_ExecuteWorkflow_ConditionalEdges(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		expected []string
	}{
		{"true branch", 80, []string{"score", "check", "vip"}},
		{"false branch", 10, []string{"score", "check", "regular"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(newTestRegistry(nil))

			workflow := testutil.CreateTestWorkflow(
				[]*models.WorkflowNode{
					staticNodeWith("score", map[string]any{"score": tt.score}),
					testutil.CreateTestNode(testutil.WithID("check"), testutil.WithCondition("{{ gt .score 50 }}")),
					staticNodeWith("vip", nil),
					staticNodeWith("regular", nil),
				},
				testutil.CreateTestEdge("score", "check"),
				testutil.CreateTypedEdge("check", "vip", models.EdgeTypeYes),
				testutil.CreateTypedEdge("check", "regular", models.EdgeTypeNo),
			)

			execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
			require.NoError(t, err)

			assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
			assert.Equal(t, tt.expected, executedIDs(execution))
		})
	}
}

func TestEngine_ExecuteWorkflow_PingConditionFanOut(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong": true}`))
	}))
	defer server.Close()

	reg := newTestRegistry(server.Client())
	reg.RegisterPredicate("always", func(context.Context, map[string]any) (bool, error) {
		return true, nil
	})
	reg.RegisterFunction("first", func(context.Context, map[string]any) (any, error) { return "first", nil })
	reg.RegisterFunction("second", func(context.Context, map[string]any) (any, error) { return "second", nil })

	engine := NewEngine(reg)

	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			testutil.CreateTestNode(testutil.WithID("trigger"), testutil.WithHTTPRequest(server.URL+"/ping")),
			testutil.CreateTestNode(testutil.WithID("check"), testutil.WithPredicate("always")),
			testutil.CreateTestNode(testutil.WithID("fan-1"), testutil.WithFunction("first")),
			testutil.CreateTestNode(testutil.WithID("fan-2"), testutil.WithFunction("second")),
		},
		testutil.CreateTestEdge("trigger", "check"),
		testutil.CreateTestEdge("check", "fan-1"),
		testutil.CreateTestEdge("check", "fan-2"),
	)

	execution, err := engine.ExecuteWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"trigger", "check", "fan-1", "fan-2"}, executedIDs(execution))

	check := execution.NodeExecutions[1]
	assert.Equal(t, map[string]any{"result": true}, check.Output)
	assert.Equal(t, map[string]any{"pong": true}, check.Input["response"])

	// both targets see the condition result, each later target overwrites "result"
	assert.Equal(t, true, execution.NodeExecutions[2].Input["result"])
	assert.Equal(t, true, execution.NodeExecutions[3].Input["result"])
	assert.Equal(t, "second", execution.Variables["result"])
}
