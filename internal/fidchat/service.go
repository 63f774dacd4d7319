package fidchat

import (
	"context"

	"github.com/philo-groves/fiddlesticks/internal/chaterr"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providerretry"
	"github.com/philo-groves/fiddlesticks/internal/tooling"
)

// Service drives turns against one configured provider, persisting
// transcript deltas through a ConversationStore and, when configured,
// running tool calls through a tooling.Runtime.
type Service struct {
	store       ConversationStore
	provider    fidprovider.ModelProvider
	toolRuntime tooling.Runtime
	policy      Policy
	hooks       fidprovider.ProviderOperationHooks
}

// New builds a chat Service. toolRuntime may be nil, meaning the engine
// never attempts tool round-trips even if the model requests them.
func New(store ConversationStore, provider fidprovider.ModelProvider, toolRuntime tooling.Runtime, policy Policy, hooks fidprovider.ProviderOperationHooks) *Service {
	if hooks == nil {
		hooks = fidprovider.NoopProviderOperationHooks{}
	}
	return &Service{store: store, provider: provider, toolRuntime: toolRuntime, policy: policy, hooks: hooks}
}

func (s *Service) tools() []fidprovider.ToolDefinition {
	if s.toolRuntime == nil {
		return nil
	}
	runtime, ok := s.toolRuntime.(*tooling.DefaultRuntime)
	if !ok {
		return nil
	}
	return runtime.Registry().Definitions()
}

func (s *Service) complete(ctx context.Context, session Session, req fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	resp, err := providerretry.Do(ctx, session.Provider, s.policy.ProviderRetryPolicy, s.hooks, func(ctx context.Context, _ int) (fidprovider.ModelResponse, error) {
		return s.provider.Complete(ctx, req)
	})
	if err != nil {
		return fidprovider.ModelResponse{}, chaterr.FromProviderError(asProviderError(err))
	}
	return resp, nil
}

// RunTurn drives one non-streaming turn, including any tool round-trips the
// model requests, up to the policy's ceiling.
func (s *Service) RunTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if isBlank(req.UserInput) {
		return TurnResult{}, chaterr.InvalidRequest("user_input must not be empty")
	}

	prior, err := s.store.LoadMessages(ctx, req.Session.ID)
	if err != nil {
		return TurnResult{}, chaterr.FromStoreError(wrapStoreErr(err))
	}

	conversation := conversationMessages(req.Session, prior, req.UserInput)
	persisted := []fidprovider.Message{{Role: fidprovider.RoleUser, Content: req.UserInput}}

	var toolResults []fidprovider.ToolResult
	roundTrips := 0

	for {
		modelReq := buildRequest(req.Session, conversation, toolResults, s.tools(), req.Options, s.policy)
		resp, err := s.complete(ctx, req.Session, modelReq)
		if err != nil {
			return TurnResult{}, err
		}

		text, calls := resp.TextAndToolCalls()
		assistantMsg := fidprovider.Message{Role: fidprovider.RoleAssistant, Content: text}
		conversation = append(conversation, assistantMsg)
		persisted = append(persisted, assistantMsg)

		hasToolRuntime := s.toolRuntime != nil
		limitReached := hasToolRuntime && len(calls) > 0 && roundTrips >= s.policy.MaxToolRoundTrips
		shouldRun := hasToolRuntime && s.policy.MaxToolRoundTrips > 0 && len(calls) > 0 && roundTrips < s.policy.MaxToolRoundTrips

		if !shouldRun {
			if err := s.store.AppendMessages(ctx, req.Session.ID, persisted); err != nil {
				return TurnResult{}, chaterr.FromStoreError(wrapStoreErr(err))
			}
			return TurnResult{
				SessionID:             req.Session.ID,
				AssistantMessage:      text,
				ToolCalls:             calls,
				StopReason:            resp.StopReason,
				Usage:                 resp.Usage,
				ToolRoundLimitReached: limitReached,
			}, nil
		}

		results, err := s.runTools(ctx, req.Session, calls)
		if err != nil {
			return TurnResult{}, err
		}
		toolResults = results
		roundTrips++
	}
}

func (s *Service) runTools(ctx context.Context, session Session, calls []fidprovider.ToolCall) ([]fidprovider.ToolResult, error) {
	execCtx := tooling.NewExecutionContext(session.ID)
	results := make([]fidprovider.ToolResult, 0, len(calls))
	for _, call := range calls {
		result, err := s.toolRuntime.Execute(ctx, call, execCtx)
		if err != nil {
			return nil, chaterr.FromToolError(asToolError(err))
		}
		results = append(results, result.IntoToolResult())
	}
	return results, nil
}
