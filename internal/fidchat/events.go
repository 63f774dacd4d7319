package fidchat

import "github.com/philo-groves/fiddlesticks/internal/fidprovider"

// Event is one item of a streamed turn. Exactly one of its fields is set;
// a well-formed stream ends with exactly one TurnComplete (or one Err).
type Event struct {
	TextDelta             *string
	ToolCallDelta         *fidprovider.ToolCall
	MessageComplete       *fidprovider.Message
	ToolExecutionStarted  *fidprovider.ToolCall
	ToolExecutionFinished *ToolExecutionFinished
	ToolRoundLimitReached *ToolRoundLimitReached
	TurnComplete          *TurnResult
	Err                   error
}

// ToolExecutionFinished reports the outcome of one tool invocation during a
// streamed turn.
type ToolExecutionFinished struct {
	Call   fidprovider.ToolCall
	Output string
	Err    error
}

// ToolRoundLimitReached is emitted once when pending tool calls exist but
// the turn's round-trip ceiling has already been reached.
type ToolRoundLimitReached struct {
	MaxRoundTrips      int
	PendingToolCalls   []fidprovider.ToolCall
}
