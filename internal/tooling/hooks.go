package tooling

import (
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

// RuntimeHooks observes the tool runtime's execution lifecycle. All three
// methods default to no-ops.
type RuntimeHooks interface {
	OnExecutionStart(call fidprovider.ToolCall, execCtx ExecutionContext)
	OnExecutionSuccess(call fidprovider.ToolCall, execCtx ExecutionContext, result ExecutionResult, elapsed time.Duration)
	OnExecutionFailure(call fidprovider.ToolCall, execCtx ExecutionContext, err *toolerr.Error, elapsed time.Duration)
}

// NoopRuntimeHooks implements RuntimeHooks with no-ops.
type NoopRuntimeHooks struct{}

func (NoopRuntimeHooks) OnExecutionStart(fidprovider.ToolCall, ExecutionContext) {}
func (NoopRuntimeHooks) OnExecutionSuccess(fidprovider.ToolCall, ExecutionContext, ExecutionResult, time.Duration) {
}
func (NoopRuntimeHooks) OnExecutionFailure(fidprovider.ToolCall, ExecutionContext, *toolerr.Error, time.Duration) {
}
