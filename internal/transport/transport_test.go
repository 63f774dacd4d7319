package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

func TestEncodeRequestBasic(t *testing.T) {
	req := fidprovider.ModelRequest{
		Model: "gpt-4o-mini",
		Messages: []fidprovider.Message{
			{Role: fidprovider.RoleSystem, Content: "be terse"},
			{Role: fidprovider.RoleUser, Content: "hi"},
		},
	}

	wire, err := encodeRequest("gpt-4o-mini", req, false)
	if err != nil {
		t.Fatalf("encodeRequest: %v", err)
	}
	if len(wire.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(wire.Messages))
	}
	if wire.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("Messages[0].Role = %s, want system", wire.Messages[0].Role)
	}
	if wire.Stream {
		t.Error("Stream = true, want false")
	}
}

func TestEncodeRequestRejectsBlankNonAssistantContent(t *testing.T) {
	req := fidprovider.ModelRequest{
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "  "}},
	}
	if _, err := encodeRequest("gpt-4o-mini", req, false); err == nil {
		t.Fatal("expected error for blank user message content")
	}
}

func TestEncodeRequestAppendsToolResultsAsToolMessages(t *testing.T) {
	req := fidprovider.ModelRequest{
		Messages:    []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "search for cats"}},
		ToolResults: []fidprovider.ToolResult{{ToolCallID: "call_1", Output: "cats are great"}},
	}
	wire, err := encodeRequest("gpt-4o-mini", req, false)
	if err != nil {
		t.Fatalf("encodeRequest: %v", err)
	}
	last := wire.Messages[len(wire.Messages)-1]
	if last.Role != openai.ChatMessageRoleTool || last.ToolCallID != "call_1" {
		t.Fatalf("last message = %+v, want tool result for call_1", last)
	}
}

func TestEncodeToolsRejectsInvalidSchema(t *testing.T) {
	req := fidprovider.ModelRequest{
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
		Tools:    []fidprovider.ToolDefinition{{Name: "broken", InputSchema: "{not json"}},
	}
	if _, err := encodeRequest("gpt-4o-mini", req, false); err == nil {
		t.Fatal("expected error for malformed tool input schema")
	}
}

func TestDecodeResponseNoChoices(t *testing.T) {
	resp := decodeResponse(fidprovider.Anthropic, openai.ChatCompletionResponse{Model: "claude-3-5-sonnet-latest"})
	if resp.StopReason != fidprovider.StopOther {
		t.Errorf("StopReason = %s, want %s", resp.StopReason, fidprovider.StopOther)
	}
	if resp.Provider != fidprovider.Anthropic {
		t.Errorf("Provider = %s, want %s", resp.Provider, fidprovider.Anthropic)
	}
}

func TestDecodeResponseWithToolCalls(t *testing.T) {
	resp := decodeResponse(fidprovider.OpenAI, openai.ChatCompletionResponse{
		Model: "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{
				FinishReason: openai.FinishReasonToolCalls,
				Message: openai.ChatCompletionMessage{
					Content: "",
					ToolCalls: []openai.ToolCall{
						{ID: "call_1", Function: openai.FunctionCall{Name: "web_search", Arguments: `{"q":"go"}`}},
					},
				},
			},
		},
	})
	if resp.StopReason != fidprovider.StopToolUse {
		t.Errorf("StopReason = %s, want %s", resp.StopReason, fidprovider.StopToolUse)
	}
	_, calls := resp.TextAndToolCalls()
	if len(calls) != 1 || calls[0].Name != "web_search" {
		t.Fatalf("calls = %+v, want single web_search call", calls)
	}
}

func TestDecodeFinishReason(t *testing.T) {
	cases := []struct {
		reason openai.FinishReason
		want   fidprovider.StopReason
	}{
		{openai.FinishReasonStop, fidprovider.StopEndTurn},
		{openai.FinishReasonLength, fidprovider.StopMaxTokens},
		{openai.FinishReasonToolCalls, fidprovider.StopToolUse},
		{openai.FinishReasonFunctionCall, fidprovider.StopToolUse},
		{"cancelled", fidprovider.StopCancelled},
		{"", fidprovider.StopOther},
	}
	for _, c := range cases {
		if got := decodeFinishReason(c.reason); got != c.want {
			t.Errorf("decodeFinishReason(%q) = %s, want %s", c.reason, got, c.want)
		}
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 42: "42", -5: "-5"}
	for in, want := range cases {
		if got := itoa(in); got != want {
			t.Errorf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestToolCallAccumulatorMergesByIndex(t *testing.T) {
	acc := newToolCallAccumulator()
	idx := 0
	acc.apply(0, openai.ToolCall{Index: &idx, Function: openai.FunctionCall{Name: "web_search"}})
	acc.apply(0, openai.ToolCall{Index: &idx, Function: openai.FunctionCall{Arguments: `{"q":`}})
	acc.apply(0, openai.ToolCall{Index: &idx, Function: openai.FunctionCall{Arguments: `"go"}`}})

	calls := acc.snapshotInOrder()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Name != "web_search" || calls[0].Arguments != `{"q":"go"}` {
		t.Fatalf("merged call = %+v", calls[0])
	}
}

func TestTransportCompleteAgainstFakeServer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "claude-3-5-sonnet-latest",
			Choices: []openai.ChatCompletionChoice{
				{FinishReason: openai.FinishReasonStop, Message: openai.ChatCompletionMessage{Content: "hello there"}},
			},
		})
	}))
	defer server.Close()

	tr := New(Config{
		Provider: fidprovider.Anthropic,
		BaseURL:  server.URL,
		Authorize: func(req *http.Request) error {
			req.Header.Set("Authorization", "Bearer sk-test")
			return nil
		},
		FallbackModel: "claude-3-5-sonnet-latest",
	})

	resp, err := tr.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "claude-3-5-sonnet-latest",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization header = %q, want Bearer sk-test", gotAuth)
	}
	text, _ := resp.TextAndToolCalls()
	if text != "hello there" {
		t.Fatalf("text = %q, want hello there", text)
	}
}

func TestTransportCompletePropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer server.Close()

	tr := New(Config{Provider: fidprovider.OpenAI, BaseURL: server.URL, FallbackModel: "gpt-4o-mini"})

	_, err := tr.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "gpt-4o-mini",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error from rate-limited response")
	}
}

func TestTransportRejectsInvalidRequestBeforeDialing(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tr := New(Config{Provider: fidprovider.OpenAI, BaseURL: server.URL})
	_, err := tr.Complete(context.Background(), fidprovider.ModelRequest{})
	if err == nil {
		t.Fatal("expected validation error for empty request")
	}
	if called {
		t.Fatal("server should not have been contacted for an invalid request")
	}
}
