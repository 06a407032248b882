package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry(slog.Default())
	r.RegisterDefaultNodes(nil)

	return r
}

func TestRegisterDefaultNodes(t *testing.T) {
	registry := newTestRegistry()

	ids := make([]string, 0)
	for _, factory := range registry.GetAvailableNodes() {
		ids = append(ids, factory.ID())
	}

	assert.Equal(t, []string{"condition", "function", "http"}, ids)

	status, ok := registry.HealthCheck()
	assert.True(t, ok)
	assert.Equal(t, "ok", status)
}

func TestHealthCheck_Empty(t *testing.T) {
	_, ok := NewRegistry(slog.Default()).HealthCheck()
	assert.False(t, ok)
}

func TestCreateNode_HTTPRequest(t *testing.T) {
	registry := newTestRegistry()

	node, err := registry.CreateNode(context.Background(), "http", "test-node-1", map[string]any{
		"url":    "https://api.example.com/test",
		"method": "GET",
	})
	require.NoError(t, err)

	assert.Equal(t, "test-node-1", node.ID())
	assert.Equal(t, "http", node.Type())
}

func TestCreateNode_SchemaValidation(t *testing.T) {
	registry := newTestRegistry()

	tests := []struct {
		name     string
		nodeType string
		config   map[string]any
	}{
		{"http without url", "http", map[string]any{"method": "GET"}},
		{"http with nil config", "http", nil},
		{"http with bad method", "http", map[string]any{"url": "https://x", "method": "FETCH"}},
		{"function without handler", "function", map[string]any{}},
		{"condition without condition", "condition", map[string]any{"other": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := registry.CreateNode(context.Background(), tt.nodeType, "n", tt.config)
			require.Error(t, err)
			assert.Nil(t, node)
			assert.Contains(t, err.Error(), "invalid "+tt.nodeType+" node config")
		})
	}
}

func TestCreateNode_UnsupportedType(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.CreateNode(context.Background(), "email", "n", map[string]any{})
	require.ErrorIs(t, err, ErrUnsupportedNodeType)
	assert.Contains(t, err.Error(), "email")
}

func TestCreateNode_ResolvesRegisteredFunctions(t *testing.T) {
	registry := newTestRegistry()
	registry.RegisterFunction("greet", func(_ context.Context, vars map[string]any) (any, error) {
		return "hi " + vars["name"].(string), nil
	})
	registry.RegisterPredicate("always", func(context.Context, map[string]any) (bool, error) {
		return true, nil
	})

	fn, err := registry.CreateNode(context.Background(), "function", "f", map[string]any{"function": "greet"})
	require.NoError(t, err)

	output, err := fn.Execute(context.Background(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "hi Ada", output["result"])

	cond, err := registry.CreateNode(context.Background(), "condition", "c", map[string]any{"predicate": "always"})
	require.NoError(t, err)

	output, err = cond.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, output["result"])

	_, err = registry.CreateNode(context.Background(), "function", "f", map[string]any{"function": "unknown"})
	require.Error(t, err)
}

func TestCreateNode_WithoutSchemaValidation(t *testing.T) {
	registry := newTestRegistry()
	registry.SetSchemaValidation(false)

	_, err := registry.CreateNode(context.Background(), "http", "n", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field 'url'")
}
