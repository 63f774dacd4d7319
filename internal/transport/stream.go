package transport

import (
	"context"
	"errors"
	"io"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

// toolCallAccumulator merges streamed tool-call deltas keyed by the
// provider-supplied numeric index. This is distinct from, and runs at a
// different layer than, the chat engine's own merge-by-id accumulator for
// deltas surfaced across tool round-trips.
type toolCallAccumulator struct {
	order []int
	byIdx map[int]*fidprovider.ToolCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIdx: make(map[int]*fidprovider.ToolCall)}
}

func (a *toolCallAccumulator) apply(index int, delta openai.ToolCall) *fidprovider.ToolCall {
	call, ok := a.byIdx[index]
	if !ok {
		call = &fidprovider.ToolCall{ID: synthID(index)}
		a.byIdx[index] = call
		a.order = append(a.order, index)
	}
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Function.Name != "" {
		call.Name = delta.Function.Name
	}
	call.Arguments += delta.Function.Arguments
	snapshot := *call
	return &snapshot
}

func (a *toolCallAccumulator) snapshotInOrder() []fidprovider.ToolCall {
	order := append([]int(nil), a.order...)
	sort.Ints(order)
	out := make([]fidprovider.ToolCall, 0, len(order))
	for _, idx := range order {
		out = append(out, *a.byIdx[idx])
	}
	return out
}

func synthID(index int) string {
	return "tool_call_" + itoa(index)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func runStreamDecoder(ctx context.Context, provider fidprovider.ProviderID, model string, stream *openai.ChatCompletionStream, events chan<- fidprovider.StreamEvent) {
	defer close(events)
	defer stream.Close()

	acc := newToolCallAccumulator()
	var assistantText string
	stopReason := fidprovider.StopOther
	usage := fidprovider.TokenUsage{}

	send := func(ev fidprovider.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return
		}
		if chunk.Usage != nil {
			usage = fidprovider.TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			assistantText += choice.Delta.Content
			text := choice.Delta.Content
			if !send(fidprovider.StreamEvent{TextDelta: &text}) {
				return
			}
		}
		for i, tc := range choice.Delta.ToolCalls {
			index := i
			if tc.Index != nil {
				index = *tc.Index
			}
			snapshot := acc.apply(index, tc)
			if !send(fidprovider.StreamEvent{ToolCallDelta: snapshot}) {
				return
			}
		}
		if choice.FinishReason != "" {
			stopReason = decodeFinishReason(choice.FinishReason)
		}
	}

	toolCalls := acc.snapshotInOrder()
	finalMessage := fidprovider.Message{Role: fidprovider.RoleAssistant, Content: assistantText}
	if !send(fidprovider.StreamEvent{MessageComplete: &finalMessage}) {
		return
	}

	output := []fidprovider.OutputItem{{Message: &finalMessage}}
	for i := range toolCalls {
		output = append(output, fidprovider.OutputItem{ToolCall: &toolCalls[i]})
	}
	response := fidprovider.ModelResponse{
		Provider:   provider,
		Model:      model,
		Output:     output,
		StopReason: stopReason,
		Usage:      usage,
	}
	send(fidprovider.StreamEvent{ResponseComplete: &response})
}
