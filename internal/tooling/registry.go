package tooling

import (
	"context"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

// Registry maps tool name to a Tool, built on the shared generic
// fidcommon.Registry so it gets concurrency safety and enumeration order
// for free.
type Registry struct {
	tools *fidcommon.Registry[string, Tool]
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: fidcommon.NewRegistry[string, Tool]()}
}

// Register adds t under its own definition name.
func (r *Registry) Register(t Tool) {
	r.tools.Set(t.Definition().Name, t)
}

// RegisterFunc registers a function-shaped tool.
func (r *Registry) RegisterFunc(definition fidprovider.ToolDefinition, handler Handler) {
	r.Register(NewFunctionTool(definition, handler))
}

// RegisterSyncFunc registers a tool whose handler never blocks, adapting it
// to the async Handler shape.
func (r *Registry) RegisterSyncFunc(definition fidprovider.ToolDefinition, handler func(argsJSON string, execCtx ExecutionContext) (string, error)) {
	r.RegisterFunc(definition, func(_ context.Context, argsJSON string, execCtx ExecutionContext) (string, error) {
		return handler(argsJSON, execCtx)
	})
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	return r.tools.Contains(name)
}

// Remove deletes name, if present.
func (r *Registry) Remove(name string) bool {
	return r.tools.Remove(name)
}

// Definitions returns every registered tool's definition, in registration
// order.
func (r *Registry) Definitions() []fidprovider.ToolDefinition {
	tools := r.tools.Values()
	out := make([]fidprovider.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Definition())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return r.tools.Len() }

// IsEmpty reports whether no tools are registered.
func (r *Registry) IsEmpty() bool { return r.tools.IsEmpty() }
