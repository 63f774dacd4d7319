package transport

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

func decodeResponse(provider fidprovider.ProviderID, resp openai.ChatCompletionResponse) fidprovider.ModelResponse {
	out := fidprovider.ModelResponse{
		Provider: provider,
		Model:    resp.Model,
		Usage: fidprovider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		out.StopReason = fidprovider.StopOther
		return out
	}
	choice := resp.Choices[0]
	out.StopReason = decodeFinishReason(choice.FinishReason)
	out.Output = decodeOutputItems(choice.Message.Content, choice.Message.ToolCalls)
	return out
}

func decodeOutputItems(content string, toolCalls []openai.ToolCall) []fidprovider.OutputItem {
	items := []fidprovider.OutputItem{
		{Message: &fidprovider.Message{Role: fidprovider.RoleAssistant, Content: content}},
	}
	for _, tc := range toolCalls {
		call := tc
		items = append(items, fidprovider.OutputItem{ToolCall: &fidprovider.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}})
	}
	return items
}

func decodeFinishReason(reason openai.FinishReason) fidprovider.StopReason {
	switch string(reason) {
	case string(openai.FinishReasonStop):
		return fidprovider.StopEndTurn
	case string(openai.FinishReasonLength):
		return fidprovider.StopMaxTokens
	case string(openai.FinishReasonToolCalls), string(openai.FinishReasonFunctionCall):
		return fidprovider.StopToolUse
	case "cancelled":
		return fidprovider.StopCancelled
	default:
		return fidprovider.StopOther
	}
}
