package fidchat

import (
	"context"

	"github.com/philo-groves/fiddlesticks/internal/chaterr"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providerretry"
	"github.com/philo-groves/fiddlesticks/internal/tooling"
)

// StreamTurn drives one streaming turn, emitting deltas as they arrive and
// interleaving tool round-trips, terminating in exactly one TurnComplete (or
// one Err) event.
func (s *Service) StreamTurn(ctx context.Context, req TurnRequest) (<-chan Event, error) {
	if isBlank(req.UserInput) {
		return nil, chaterr.InvalidRequest("user_input must not be empty")
	}

	prior, err := s.store.LoadMessages(ctx, req.Session.ID)
	if err != nil {
		return nil, chaterr.FromStoreError(wrapStoreErr(err))
	}

	req.Options.Stream = true
	events := make(chan Event)
	go s.streamLoop(ctx, req, prior, events)
	return events, nil
}

// byIDAccumulator merges streamed tool-call deltas keyed by call id, the
// chat engine's own merge key, distinct from the transport layer's
// merge-by-index accumulator one layer below.
type byIDAccumulator struct {
	order []string
	byID  map[string]*fidprovider.ToolCall
}

func newByIDAccumulator() *byIDAccumulator {
	return &byIDAccumulator{byID: make(map[string]*fidprovider.ToolCall)}
}

func (a *byIDAccumulator) apply(delta fidprovider.ToolCall) fidprovider.ToolCall {
	call, ok := a.byID[delta.ID]
	if !ok {
		call = &fidprovider.ToolCall{ID: delta.ID}
		a.byID[delta.ID] = call
		a.order = append(a.order, delta.ID)
	}
	if delta.Name != "" {
		call.Name = delta.Name
	}
	call.Arguments += delta.Arguments
	return *call
}

func (a *byIDAccumulator) snapshot() []fidprovider.ToolCall {
	out := make([]fidprovider.ToolCall, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.byID[id])
	}
	return out
}

func (s *Service) streamLoop(ctx context.Context, req TurnRequest, prior []fidprovider.Message, events chan<- Event) {
	defer close(events)

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	conversation := conversationMessages(req.Session, prior, req.UserInput)
	persisted := []fidprovider.Message{{Role: fidprovider.RoleUser, Content: req.UserInput}}
	var toolResults []fidprovider.ToolResult
	roundTrips := 0

	for {
		modelReq := buildRequest(req.Session, conversation, toolResults, s.tools(), req.Options, s.policy)

		streamCh, err := providerretry.Do(ctx, req.Session.Provider, s.policy.ProviderRetryPolicy, s.hooks, func(ctx context.Context, _ int) (<-chan fidprovider.StreamEvent, error) {
			return s.provider.Stream(ctx, modelReq)
		})
		if err != nil {
			send(Event{Err: chaterr.FromProviderError(asProviderError(err)).WithPhase(chaterr.PhaseStreaming)})
			return
		}

		acc := newByIDAccumulator()
		var assistantText string
		var finalResp *fidprovider.ModelResponse

		for ev := range streamCh {
			if ev.TextDelta != nil {
				assistantText += *ev.TextDelta
				if !send(Event{TextDelta: ev.TextDelta}) {
					return
				}
			}
			if ev.ToolCallDelta != nil {
				merged := acc.apply(*ev.ToolCallDelta)
				if !send(Event{ToolCallDelta: &merged}) {
					return
				}
			}
			if ev.MessageComplete != nil {
				if assistantText == "" {
					assistantText = ev.MessageComplete.Content
				}
				if !send(Event{MessageComplete: ev.MessageComplete}) {
					return
				}
			}
			if ev.ResponseComplete != nil {
				response := *ev.ResponseComplete
				finalResp = &response
			}
		}

		var text string
		var calls []fidprovider.ToolCall
		stopReason := fidprovider.StopOther
		usage := fidprovider.TokenUsage{}
		if finalResp != nil {
			text, calls = finalResp.TextAndToolCalls()
			stopReason = finalResp.StopReason
			usage = finalResp.Usage
		} else {
			text = assistantText
			calls = acc.snapshot()
		}

		assistantMsg := fidprovider.Message{Role: fidprovider.RoleAssistant, Content: text}
		conversation = append(conversation, assistantMsg)
		persisted = append(persisted, assistantMsg)

		hasToolRuntime := s.toolRuntime != nil
		limitReached := hasToolRuntime && len(calls) > 0 && roundTrips >= s.policy.MaxToolRoundTrips
		shouldRun := hasToolRuntime && s.policy.MaxToolRoundTrips > 0 && len(calls) > 0 && roundTrips < s.policy.MaxToolRoundTrips

		if limitReached {
			if !send(Event{ToolRoundLimitReached: &ToolRoundLimitReached{MaxRoundTrips: s.policy.MaxToolRoundTrips, PendingToolCalls: calls}}) {
				return
			}
		}

		if !shouldRun {
			if err := s.store.AppendMessages(ctx, req.Session.ID, persisted); err != nil {
				send(Event{Err: chaterr.FromStoreError(wrapStoreErr(err))})
				return
			}
			send(Event{TurnComplete: &TurnResult{
				SessionID:             req.Session.ID,
				AssistantMessage:      text,
				ToolCalls:             calls,
				StopReason:            stopReason,
				Usage:                 usage,
				ToolRoundLimitReached: limitReached,
			}})
			return
		}

		results := make([]fidprovider.ToolResult, 0, len(calls))
		execCtx := tooling.NewExecutionContext(req.Session.ID)
		for _, call := range calls {
			if !send(Event{ToolExecutionStarted: &call}) {
				return
			}
			result, err := s.toolRuntime.Execute(ctx, call, execCtx)
			if err != nil {
				send(Event{ToolExecutionFinished: &ToolExecutionFinished{Call: call, Err: err}})
				send(Event{Err: chaterr.FromToolError(asToolError(err))})
				return
			}
			send(Event{ToolExecutionFinished: &ToolExecutionFinished{Call: call, Output: result.Output}})
			results = append(results, result.IntoToolResult())
		}
		toolResults = results
		roundTrips++
	}
}
