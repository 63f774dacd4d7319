package fidchat

import "github.com/philo-groves/fiddlesticks/internal/fidprovider"

func buildRequest(session Session, messages []fidprovider.Message, toolResults []fidprovider.ToolResult, tools []fidprovider.ToolDefinition, options TurnOptions, policy Policy) fidprovider.ModelRequest {
	temperature := options.Temperature
	if temperature == nil {
		temperature = policy.DefaultTemperature
	}
	maxTokens := options.MaxTokens
	if maxTokens == nil {
		maxTokens = policy.DefaultMaxTokens
	}
	return fidprovider.ModelRequest{
		Model:       session.Model,
		Messages:    messages,
		Tools:       tools,
		ToolResults: toolResults,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      options.Stream,
	}
}

func conversationMessages(session Session, prior []fidprovider.Message, userInput string) []fidprovider.Message {
	out := make([]fidprovider.Message, 0, len(prior)+2)
	if session.SystemPrompt != nil {
		out = append(out, fidprovider.Message{Role: fidprovider.RoleSystem, Content: *session.SystemPrompt})
	}
	out = append(out, prior...)
	out = append(out, fidprovider.Message{Role: fidprovider.RoleUser, Content: userInput})
	return out
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
