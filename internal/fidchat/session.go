package fidchat

import (
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

// Session identifies a durable conversation and the provider/model it talks
// to.
type Session struct {
	ID           fidcommon.SessionID
	Provider     fidprovider.ProviderID
	Model        string
	SystemPrompt *string
}

// TurnOptions overrides Policy defaults for a single turn.
type TurnOptions struct {
	Temperature *float64
	MaxTokens   *int
	Stream      bool
}

// TurnRequest is the input to RunTurn/StreamTurn.
type TurnRequest struct {
	Session   Session
	UserInput string
	Options   TurnOptions
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	SessionID             fidcommon.SessionID
	AssistantMessage      string
	ToolCalls             []fidprovider.ToolCall
	StopReason            fidprovider.StopReason
	Usage                 fidprovider.TokenUsage
	ToolRoundLimitReached bool
}
