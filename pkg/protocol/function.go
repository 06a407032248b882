package protocol

import "context"

// Function is a named handler a function node can invoke.
type Function func(ctx context.Context, variables map[string]any) (any, error)

// Predicate is a named handler a condition node can evaluate.
type Predicate func(ctx context.Context, variables map[string]any) (bool, error)

// FunctionResolver looks up registered functions by name.
type FunctionResolver interface {
	Function(name string) (Function, bool)
}

// PredicateResolver looks up registered predicates by name.
type PredicateResolver interface {
	Predicate(name string) (Predicate, bool)
}
