package fidchat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/tooling"
)

type scriptedProvider struct {
	responses []fidprovider.ModelResponse
	calls     []fidprovider.ModelRequest
}

func (p *scriptedProvider) ID() fidprovider.ProviderID { return fidprovider.OpenAI }

func (p *scriptedProvider) Complete(_ context.Context, req fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	p.calls = append(p.calls, req)
	idx := len(p.calls) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) Stream(context.Context, fidprovider.ModelRequest) (<-chan fidprovider.StreamEvent, error) {
	panic("not used in these tests")
}

func (p *scriptedProvider) ListModels(context.Context) ([]string, error) { return nil, nil }

func textResponse(text string) fidprovider.ModelResponse {
	return fidprovider.ModelResponse{
		Output:     []fidprovider.OutputItem{{Message: &fidprovider.Message{Role: fidprovider.RoleAssistant, Content: text}}},
		StopReason: fidprovider.StopEndTurn,
	}
}

func toolCallResponse(text, callID, name, args string) fidprovider.ModelResponse {
	return fidprovider.ModelResponse{
		Output: []fidprovider.OutputItem{
			{Message: &fidprovider.Message{Role: fidprovider.RoleAssistant, Content: text}},
			{ToolCall: &fidprovider.ToolCall{ID: callID, Name: name, Arguments: args}},
		},
		StopReason: fidprovider.StopToolUse,
	}
}

func TestRunTurnRejectsEmptyUserInput(t *testing.T) {
	provider := &scriptedProvider{responses: []fidprovider.ModelResponse{textResponse("unused")}}
	svc := fidchat.New(fidchat.NewInMemoryConversationStore(), provider, nil, fidchat.DefaultPolicy(), nil)

	_, err := svc.RunTurn(context.Background(), fidchat.TurnRequest{
		Session:   fidchat.Session{ID: fidcommon.SessionID("s1"), Model: "gpt-4o-mini"},
		UserInput: "   ",
	})
	require.Error(t, err)
	assert.Empty(t, provider.calls)
}

func TestRunTurnAssemblesHistoryAndSystemPrompt(t *testing.T) {
	store := fidchat.NewInMemoryConversationStore()
	require.NoError(t, store.AppendMessages(context.Background(), fidcommon.SessionID("s2"), []fidprovider.Message{
		{Role: fidprovider.RoleUser, Content: "prior question"},
	}))
	provider := &scriptedProvider{responses: []fidprovider.ModelResponse{textResponse("assistant reply")}}
	svc := fidchat.New(store, provider, nil, fidchat.DefaultPolicy(), nil)

	systemPrompt := "be concise"
	result, err := svc.RunTurn(context.Background(), fidchat.TurnRequest{
		Session:   fidchat.Session{ID: fidcommon.SessionID("s2"), Model: "gpt-4o-mini", SystemPrompt: &systemPrompt},
		UserInput: "new question",
	})
	require.NoError(t, err)
	assert.Equal(t, "assistant reply", result.AssistantMessage)

	require.Len(t, provider.calls, 1)
	sent := provider.calls[0].Messages
	require.Len(t, sent, 3)
	assert.Equal(t, fidprovider.RoleSystem, sent[0].Role)
	assert.Equal(t, "prior question", sent[1].Content)
	assert.Equal(t, "new question", sent[2].Content)
}

func TestRunTurnCompletesToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []fidprovider.ModelResponse{
		toolCallResponse("assistant reply", "call_1", "lookup", "{}"),
		textResponse("tool answer"),
	}}
	registry := tooling.NewRegistry()
	registry.RegisterSyncFunc(fidprovider.ToolDefinition{Name: "lookup"}, func(string, tooling.ExecutionContext) (string, error) {
		return `{"result":"ok"}`, nil
	})
	runtime := tooling.NewDefaultRuntime(registry)

	policy := fidchat.DefaultPolicy()
	policy.MaxToolRoundTrips = 2
	svc := fidchat.New(fidchat.NewInMemoryConversationStore(), provider, runtime, policy, nil)

	result, err := svc.RunTurn(context.Background(), fidchat.TurnRequest{
		Session:   fidchat.Session{ID: fidcommon.SessionID("s3"), Model: "gpt-4o-mini"},
		UserInput: "question",
	})
	require.NoError(t, err)
	assert.Equal(t, "tool answer", result.AssistantMessage)
	assert.Empty(t, result.ToolCalls)
	assert.False(t, result.ToolRoundLimitReached)
	require.Len(t, provider.calls, 2)
	assert.Len(t, provider.calls[1].ToolResults, 1)
}

func TestRunTurnReportsToolRoundLimitReached(t *testing.T) {
	provider := &scriptedProvider{responses: []fidprovider.ModelResponse{
		toolCallResponse("assistant reply", "call_1", "lookup", "{}"),
	}}
	registry := tooling.NewRegistry()
	registry.RegisterSyncFunc(fidprovider.ToolDefinition{Name: "lookup"}, func(string, tooling.ExecutionContext) (string, error) {
		return "ok", nil
	})
	runtime := tooling.NewDefaultRuntime(registry)

	policy := fidchat.DefaultPolicy()
	policy.MaxToolRoundTrips = 0
	svc := fidchat.New(fidchat.NewInMemoryConversationStore(), provider, runtime, policy, nil)

	result, err := svc.RunTurn(context.Background(), fidchat.TurnRequest{
		Session:   fidchat.Session{ID: fidcommon.SessionID("s4"), Model: "gpt-4o-mini"},
		UserInput: "question",
	})
	require.NoError(t, err)
	assert.True(t, result.ToolRoundLimitReached)
	require.Len(t, result.ToolCalls, 1)
	assert.Len(t, provider.calls, 1)
}
