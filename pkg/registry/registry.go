// Package registry holds the node factories and the named functions and predicates
// that function and condition nodes resolve at creation time.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"strings"
	"sync"

	"github.com/flowmark/journey/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrUnsupportedNodeType = errors.New("unsupported node type")
	ErrNodeTypeRegistered  = errors.New("node type already registered")
)

type Registry struct {
	logger         *slog.Logger
	mu             sync.RWMutex
	nodeFactories  map[string]protocol.NodeFactory
	functions      map[string]protocol.Function
	predicates     map[string]protocol.Predicate
	validateSchema bool
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:         log,
		nodeFactories:  make(map[string]protocol.NodeFactory),
		functions:      make(map[string]protocol.Function),
		predicates:     make(map[string]protocol.Predicate),
		validateSchema: true,
	}
}

// SetSchemaValidation toggles validation of node config against the factory schema.
func (r *Registry) SetSchemaValidation(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.validateSchema = enabled
}

func (r *Registry) LoadNodePlugins(pluginsPath string) ([]protocol.NodeFactory, error) {
	return loadPlugin[protocol.NodeFactory](r.logger, pluginsPath, "Node")
}

func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodeFactories[factory.ID()] = factory
}

// RegisterPluginNode adds a node type contributed by a plugin. Plugins extend the
// node set; a plugin can never replace a type that is already registered.
func (r *Registry) RegisterPluginNode(factory protocol.NodeFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodeFactories[factory.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrNodeTypeRegistered, factory.ID())
	}

	r.nodeFactories[factory.ID()] = factory

	return nil
}

// RegisterFunction makes fn available to function nodes under name.
func (r *Registry) RegisterFunction(name string, fn protocol.Function) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.functions[name] = fn
}

// RegisterPredicate makes p available to condition nodes under name.
func (r *Registry) RegisterPredicate(name string, p protocol.Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.predicates[name] = p
}

func (r *Registry) Function(name string) (protocol.Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.functions[name]

	return fn, ok
}

func (r *Registry) Predicate(name string) (protocol.Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.predicates[name]

	return p, ok
}

// CreateNode creates a node of nodeType after checking config against the factory schema.
func (r *Registry) CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Node, error) {
	r.mu.RLock()
	factory, ok := r.nodeFactories[nodeType]
	validate := r.validateSchema
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNodeType, nodeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	if validate {
		if err := validateConfig(config, factory.Schema()); err != nil {
			return nil, fmt.Errorf("invalid %s node config: %w", nodeType, err)
		}
	}

	return factory.Create(ctx, id, config)
}

// GetAvailableNodes returns the registered factories ordered by ID.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.NodeFactory, 0, len(r.nodeFactories))
	for _, factory := range r.nodeFactories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})

	return factories
}

func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.nodeFactories) == 0 {
		return "no node types registered", false
	}

	return "ok", true
}

func validateConfig(config map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))
	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no %s symbol: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: %s symbol has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded node plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
