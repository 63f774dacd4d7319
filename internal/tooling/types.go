// Package tooling implements the tool registry and runtime the chat engine
// drives to execute model-requested tool calls: a named lookup, JSON-Schema
// argument validation, an optional per-call timeout, and a lifecycle hook
// triple observers can subscribe to.
package tooling

import (
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

// ExecutionContext carries the ambient identity attached to a tool
// invocation: which session requested it, an optional trace id, and
// arbitrary ordered metadata.
type ExecutionContext struct {
	SessionID fidcommon.SessionID
	TraceID   *fidcommon.TraceID
	Metadata  fidcommon.MetadataMap
}

// NewExecutionContext returns a context for sessionID with empty metadata.
func NewExecutionContext(sessionID fidcommon.SessionID) ExecutionContext {
	return ExecutionContext{SessionID: sessionID, Metadata: fidcommon.NewMetadataMap()}
}

// WithTraceID returns a copy of ctx carrying traceID.
func (c ExecutionContext) WithTraceID(traceID fidcommon.TraceID) ExecutionContext {
	c.TraceID = &traceID
	return c
}

// WithMetadata returns a copy of ctx with metadata replaced.
func (c ExecutionContext) WithMetadata(metadata fidcommon.MetadataMap) ExecutionContext {
	c.Metadata = metadata
	return c
}

// ExecutionResult is the outcome of running a ToolCall, ready to be fed back
// to the model as a fidprovider.ToolResult.
type ExecutionResult struct {
	ToolCallID string
	Output     string
}

// FromCall builds an ExecutionResult stamped with the originating call's id.
func FromCall(call fidprovider.ToolCall, output string) ExecutionResult {
	return ExecutionResult{ToolCallID: call.ID, Output: output}
}

// IntoToolResult converts the result into the provider-facing ToolResult
// shape fed back on the next round-trip.
func (r ExecutionResult) IntoToolResult() fidprovider.ToolResult {
	return fidprovider.ToolResult{ToolCallID: r.ToolCallID, Output: r.Output}
}
