package fidprovider

import "testing"

func validRequest() ModelRequest {
	return ModelRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := validRequest()
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsEmptyModel(t *testing.T) {
	req := validRequest()
	req.Model = "   "
	if err := req.Validate(); err == nil {
		t.Fatal("expected error for blank model")
	}
}

func TestValidateRejectsEmptyMessages(t *testing.T) {
	req := validRequest()
	req.Messages = nil
	if err := req.Validate(); err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestValidateRejectsOutOfRangeTemperature(t *testing.T) {
	req := validRequest()
	tooHigh := 2.5
	req.Temperature = &tooHigh
	if err := req.Validate(); err == nil {
		t.Fatal("expected error for temperature above 2.0")
	}

	tooLow := -0.1
	req.Temperature = &tooLow
	if err := req.Validate(); err == nil {
		t.Fatal("expected error for negative temperature")
	}
}

func TestValidateRejectsNonPositiveMaxTokens(t *testing.T) {
	req := validRequest()
	zero := 0
	req.MaxTokens = &zero
	if err := req.Validate(); err == nil {
		t.Fatal("expected error for zero max_tokens")
	}
}

func TestTextAndToolCalls(t *testing.T) {
	resp := ModelResponse{
		Output: []OutputItem{
			{Message: &Message{Role: RoleAssistant, Content: "Let me check. "}},
			{ToolCall: &ToolCall{ID: "call_1", Name: "web_search", Arguments: `{"q":"weather"}`}},
			{Message: &Message{Role: RoleAssistant, Content: "One moment."}},
		},
	}

	text, calls := resp.TextAndToolCalls()
	if text != "Let me check. One moment." {
		t.Fatalf("text = %q, want concatenated message content", text)
	}
	if len(calls) != 1 || calls[0].Name != "web_search" {
		t.Fatalf("calls = %+v, want single web_search call", calls)
	}
}

func TestTextAndToolCallsEmptyResponse(t *testing.T) {
	resp := ModelResponse{}
	text, calls := resp.TextAndToolCalls()
	if text != "" || len(calls) != 0 {
		t.Fatalf("got (%q, %v), want empty", text, calls)
	}
}

func TestNoopProviderOperationHooksSatisfiesInterface(t *testing.T) {
	var hooks ProviderOperationHooks = NoopProviderOperationHooks{}
	hooks.OnAttemptStart(Anthropic, 1)
	hooks.OnRetryScheduled(Anthropic, 1, 0, nil)
	hooks.OnSuccess(Anthropic, 1, 0)
	hooks.OnFailure(Anthropic, 1, 0, nil)
}
