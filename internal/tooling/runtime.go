package tooling

import (
	"context"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

// Runtime executes a single tool call and returns its result.
type Runtime interface {
	Execute(ctx context.Context, call fidprovider.ToolCall, execCtx ExecutionContext) (ExecutionResult, error)
}

// DefaultRuntime is the standard Runtime: registry lookup, optional JSON
// Schema argument validation, an optional per-call timeout raced against
// the tool's own future, and lifecycle hooks around every outcome.
type DefaultRuntime struct {
	registry *Registry
	hooks    RuntimeHooks
	timeout  time.Duration // zero means no timeout
	schemas  *schemaCache
}

// NewDefaultRuntime builds a runtime over registry with no timeout and
// no-op hooks.
func NewDefaultRuntime(registry *Registry) *DefaultRuntime {
	return &DefaultRuntime{registry: registry, hooks: NoopRuntimeHooks{}, schemas: newSchemaCache()}
}

// WithHooks returns a copy of the runtime using hooks.
func (r *DefaultRuntime) WithHooks(hooks RuntimeHooks) *DefaultRuntime {
	c := *r
	c.hooks = hooks
	return &c
}

// WithTimeout returns a copy of the runtime applying timeout to every call.
func (r *DefaultRuntime) WithTimeout(timeout time.Duration) *DefaultRuntime {
	c := *r
	c.timeout = timeout
	return &c
}

// ClearTimeout returns a copy of the runtime with no per-call timeout.
func (r *DefaultRuntime) ClearTimeout() *DefaultRuntime {
	c := *r
	c.timeout = 0
	return &c
}

// Registry returns the underlying tool registry.
func (r *DefaultRuntime) Registry() *Registry { return r.registry }

func (r *DefaultRuntime) Execute(ctx context.Context, call fidprovider.ToolCall, execCtx ExecutionContext) (ExecutionResult, error) {
	started := time.Now()
	r.hooks.OnExecutionStart(call, execCtx)

	tool, ok := r.registry.Get(call.Name)
	if !ok {
		err := toolerr.NotFound("no tool registered with name: " + call.Name)
		r.hooks.OnExecutionFailure(call, execCtx, err, time.Since(started))
		return ExecutionResult{}, err
	}

	if err := r.schemas.ValidateArguments(call.Name, tool.Definition().InputSchema, call.Arguments); err != nil {
		terr := asToolError(err)
		r.hooks.OnExecutionFailure(call, execCtx, terr, time.Since(started))
		return ExecutionResult{}, terr
	}

	output, err := r.invoke(ctx, tool, call, execCtx)
	if err != nil {
		terr := asToolError(err)
		r.hooks.OnExecutionFailure(call, execCtx, terr, time.Since(started))
		return ExecutionResult{}, terr
	}

	result := FromCall(call, output)
	r.hooks.OnExecutionSuccess(call, execCtx, result, time.Since(started))
	return result, nil
}

func (r *DefaultRuntime) invoke(ctx context.Context, tool Tool, call fidprovider.ToolCall, execCtx ExecutionContext) (string, error) {
	if r.timeout <= 0 {
		return tool.Invoke(ctx, call.Arguments, execCtx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := tool.Invoke(timeoutCtx, call.Arguments, execCtx)
		done <- outcome{output: output, err: err}
	}()

	select {
	case o := <-done:
		return o.output, o.err
	case <-timeoutCtx.Done():
		return "", toolerr.Timeout("tool execution timed out after " + r.timeout.String() + ": " + call.Name)
	}
}

func asToolError(err error) *toolerr.Error {
	if terr, ok := err.(*toolerr.Error); ok {
		return terr
	}
	return toolerr.Execution(err.Error())
}
