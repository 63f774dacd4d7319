package tooling

import (
	"context"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

// Tool is a named, callable capability the chat engine can invoke on the
// model's behalf.
type Tool interface {
	Definition() fidprovider.ToolDefinition
	Invoke(ctx context.Context, argsJSON string, execCtx ExecutionContext) (string, error)
}

// Handler is the function shape a FunctionTool wraps.
type Handler func(ctx context.Context, argsJSON string, execCtx ExecutionContext) (string, error)

// FunctionTool adapts a plain function into a Tool, the common case for
// tools that don't need their own type.
type FunctionTool struct {
	definition fidprovider.ToolDefinition
	handler    Handler
}

// NewFunctionTool builds a Tool from a definition and a handler function.
func NewFunctionTool(definition fidprovider.ToolDefinition, handler Handler) *FunctionTool {
	return &FunctionTool{definition: definition, handler: handler}
}

func (t *FunctionTool) Definition() fidprovider.ToolDefinition { return t.definition }

func (t *FunctionTool) Invoke(ctx context.Context, argsJSON string, execCtx ExecutionContext) (string, error) {
	if t.handler == nil {
		return "", toolerr.Execution("tool has no handler: " + t.definition.Name)
	}
	return t.handler(ctx, argsJSON, execCtx)
}
