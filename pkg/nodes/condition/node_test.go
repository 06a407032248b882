package condition

import (
	"context"
	"errors"
	"testing"

	"github.com/flowmark/journey/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverStub map[string]protocol.Predicate

func (r resolverStub) Predicate(name string) (protocol.Predicate, bool) {
	p, ok := r[name]

	return p, ok
}

func TestConditionNode_Execute_Expression(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		variables map[string]any
		expected  bool
	}{
		{"greater than", "{{ gt .score 50 }}", map[string]any{"score": 75}, true},
		{"not greater than", "{{ gt .score 50 }}", map[string]any{"score": 10}, false},
		{"string equality", `{{ eq .segment "vip" }}`, map[string]any{"segment": "vip"}, true},
		{"missing variable", "{{ .opted_in }}", map[string]any{}, false},
		{"literal true", "true", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewConditionNode("cond", map[string]any{"condition": tt.condition}, nil)
			require.NoError(t, err)

			output, err := node.Execute(context.Background(), tt.variables)
			require.NoError(t, err)

			result, ok := Result(output)
			require.True(t, ok)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConditionNode_Execute_Predicate(t *testing.T) {
	resolver := resolverStub{
		"is_subscribed": func(_ context.Context, variables map[string]any) (bool, error) {
			return variables["subscribed"] == true, nil
		},
		"broken": func(context.Context, map[string]any) (bool, error) {
			return false, errors.New("lookup failed")
		},
	}

	node, err := NewConditionNode("cond", map[string]any{"predicate": "is_subscribed"}, resolver)
	require.NoError(t, err)

	output, err := node.Execute(context.Background(), map[string]any{"subscribed": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": true}, output)

	node, err = NewConditionNode("cond", map[string]any{"predicate": "broken"}, resolver)
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup failed")
}

func TestConditionNode_Execute_TemplateError(t *testing.T) {
	node, err := NewConditionNode("cond", map[string]any{"condition": "{{ unknown_fn }}"}, nil)
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "condition evaluation failed")
}

func TestNewConditionNode_Validation(t *testing.T) {
	_, err := NewConditionNode("cond", map[string]any{}, nil)
	require.ErrorIs(t, err, ErrMissingCondition)

	_, err = NewConditionNode("cond", map[string]any{"predicate": "nope"}, resolverStub{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
