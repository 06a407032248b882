package workflow

import (
	"strconv"
	"testing"

	"github.com/flowmark/journey/pkg/models"
	"github.com/flowmark/journey/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph_Problems(t *testing.T) {
	tests := []struct {
		name     string
		workflow *models.Workflow
		problem  string
	}{
		{
			name: "empty node id",
			workflow: testutil.CreateTestWorkflow([]*models.WorkflowNode{
				testutil.CreateTestNode(testutil.WithID("")),
			}),
			problem: "empty ID",
		},
		{
			name: "duplicate node id",
			workflow: testutil.CreateTestWorkflow([]*models.WorkflowNode{
				testutil.CreateTestNode(testutil.WithID("a")),
				testutil.CreateTestNode(testutil.WithID("a")),
			}),
			problem: `duplicate node ID "a"`,
		},
		{
			name: "dangling source",
			workflow: testutil.CreateTestWorkflow(
				[]*models.WorkflowNode{testutil.CreateTestNode(testutil.WithID("a"))},
				testutil.CreateTestEdge("ghost", "a"),
			),
			problem: `non-existent source node "ghost"`,
		},
		{
			name: "self loop",
			workflow: testutil.CreateTestWorkflow(
				[]*models.WorkflowNode{testutil.CreateTestNode(testutil.WithID("a"))},
				testutil.CreateTestEdge("a", "a"),
			),
			problem: "cycle detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := buildGraph(tt.workflow)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrInvalidGraph)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestBuildGraph_CollectsEveryProblem(t *testing.T) {
	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{testutil.CreateTestNode(testutil.WithID("a"))},
		testutil.CreateTestEdge("x", "a"),
		testutil.CreateTestEdge("a", "y"),
	)

	_, err := buildGraph(workflow)

	var graphErr *GraphValidationError
	require.ErrorAs(t, err, &graphErr)
	assert.Len(t, graphErr.Problems, 2)
	assert.NotErrorIs(t, err, ErrCycleDetected)
}

func TestGraph_StartNodes(t *testing.T) {
	workflow := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			testutil.CreateTestNode(testutil.WithID("b")),
			testutil.CreateTestNode(testutil.WithID("a")),
			testutil.CreateTestNode(testutil.WithID("c")),
		},
		testutil.CreateTestEdge("a", "b"),
	)

	g, err := buildGraph(workflow)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, g.startNodes())
}

func TestBuildGraph_DeepChain(t *testing.T) {
	nodes := make([]*models.WorkflowNode, 0, 5000)
	for i := range 5000 {
		nodes = append(nodes, testutil.CreateTestNode(testutil.WithID("n"+strconv.Itoa(i))))
	}

	g, err := buildGraph(testutil.CreateLinearWorkflow(nodes...))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, g.startNodes())
}

func TestValidateGraph(t *testing.T) {
	err := ValidateGraph(nil)
	require.ErrorIs(t, err, ErrInvalidGraph)

	valid := testutil.CreateLinearWorkflow(
		testutil.CreateTestNode(testutil.WithID("a")),
		testutil.CreateTestNode(testutil.WithID("b")),
	)
	require.NoError(t, ValidateGraph(valid))

	cyclic := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{
			testutil.CreateTestNode(testutil.WithID("a")),
			testutil.CreateTestNode(testutil.WithID("b")),
		},
		testutil.CreateTestEdge("a", "b"),
		testutil.CreateTestEdge("b", "a"),
	)

	err = ValidateGraph(cyclic)

	var validationErr *GraphValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, ErrCycleDetected)
}
