package transport

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
)

func encodeRequest(model string, req fidprovider.ModelRequest, stream bool) (openai.ChatCompletionRequest, error) {
	messages, err := encodeMessages(req.Messages, req.ToolResults)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	tools, err := encodeTools(req.Tools)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	wire := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Stream:   stream,
	}
	if req.Temperature != nil {
		wire.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		wire.MaxTokens = *req.MaxTokens
	}
	return wire, nil
}

func encodeMessages(messages []fidprovider.Message, toolResults []fidprovider.ToolResult) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+len(toolResults))
	for _, m := range messages {
		role, err := encodeRole(m.Role)
		if err != nil {
			return nil, err
		}
		if m.Role != fidprovider.RoleAssistant && trimEmpty(m.Content) {
			return nil, providererr.InvalidRequest("non-assistant message content must not be empty")
		}
		wm := openai.ChatCompletionMessage{Role: role, Content: m.Content}
		if m.Role == fidprovider.RoleTool {
			wm.ToolCallID = m.ToolCallID
		}
		out = append(out, wm)
	}
	for _, tr := range toolResults {
		out = append(out, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    tr.Output,
			ToolCallID: tr.ToolCallID,
		})
	}
	return out, nil
}

func encodeRole(role fidprovider.Role) (string, error) {
	switch role {
	case fidprovider.RoleSystem:
		return openai.ChatMessageRoleSystem, nil
	case fidprovider.RoleUser:
		return openai.ChatMessageRoleUser, nil
	case fidprovider.RoleAssistant:
		return openai.ChatMessageRoleAssistant, nil
	case fidprovider.RoleTool:
		return openai.ChatMessageRoleTool, nil
	default:
		return "", providererr.InvalidRequest("unknown message role")
	}
}

func encodeTools(tools []fidprovider.ToolDefinition) ([]openai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any
		if t.InputSchema != "" {
			if err := json.Unmarshal([]byte(t.InputSchema), &params); err != nil {
				return nil, providererr.InvalidRequest("tool input_schema is not valid JSON: " + t.Name)
			}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out, nil
}

func trimEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
