package observability

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/harness"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
	"github.com/philo-groves/fiddlesticks/internal/tooling"
	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

// SafeProviderHooks wraps a fidprovider.ProviderOperationHooks so a panicking
// observer can never take down a provider call. Each method recovers and
// logs instead of propagating.
type SafeProviderHooks struct {
	inner  fidprovider.ProviderOperationHooks
	logger *slog.Logger
}

// NewSafeProviderHooks wraps inner. A nil inner defaults to
// fidprovider.NoopProviderOperationHooks.
func NewSafeProviderHooks(inner fidprovider.ProviderOperationHooks, logger *slog.Logger) *SafeProviderHooks {
	if inner == nil {
		inner = fidprovider.NoopProviderOperationHooks{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SafeProviderHooks{inner: inner, logger: logger.With("component", "provider_hooks")}
}

func (h *SafeProviderHooks) recoverInto(method string) {
	if p := recover(); p != nil {
		h.logger.Error("hook panic", "method", method, "panic", fmt.Sprintf("%v", p))
	}
}

func (h *SafeProviderHooks) OnAttemptStart(provider fidprovider.ProviderID, attempt int) {
	defer h.recoverInto("OnAttemptStart")
	h.inner.OnAttemptStart(provider, attempt)
}

func (h *SafeProviderHooks) OnRetryScheduled(provider fidprovider.ProviderID, attempt int, delay time.Duration, err *providererr.Error) {
	defer h.recoverInto("OnRetryScheduled")
	h.inner.OnRetryScheduled(provider, attempt, delay, err)
}

func (h *SafeProviderHooks) OnSuccess(provider fidprovider.ProviderID, attempts int, elapsed time.Duration) {
	defer h.recoverInto("OnSuccess")
	h.inner.OnSuccess(provider, attempts, elapsed)
}

func (h *SafeProviderHooks) OnFailure(provider fidprovider.ProviderID, attempts int, elapsed time.Duration, err *providererr.Error) {
	defer h.recoverInto("OnFailure")
	h.inner.OnFailure(provider, attempts, elapsed, err)
}

// SafeToolHooks wraps a tooling.RuntimeHooks the same way SafeProviderHooks
// wraps provider hooks: a panicking observer logs and is swallowed rather
// than aborting tool execution.
type SafeToolHooks struct {
	inner  tooling.RuntimeHooks
	logger *slog.Logger
}

func NewSafeToolHooks(inner tooling.RuntimeHooks, logger *slog.Logger) *SafeToolHooks {
	if inner == nil {
		inner = tooling.NoopRuntimeHooks{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SafeToolHooks{inner: inner, logger: logger.With("component", "tool_hooks")}
}

func (h *SafeToolHooks) recoverInto(method string) {
	if p := recover(); p != nil {
		h.logger.Error("hook panic", "method", method, "panic", fmt.Sprintf("%v", p))
	}
}

func (h *SafeToolHooks) OnExecutionStart(call fidprovider.ToolCall, execCtx tooling.ExecutionContext) {
	defer h.recoverInto("OnExecutionStart")
	h.inner.OnExecutionStart(call, execCtx)
}

func (h *SafeToolHooks) OnExecutionSuccess(call fidprovider.ToolCall, execCtx tooling.ExecutionContext, result tooling.ExecutionResult, elapsed time.Duration) {
	defer h.recoverInto("OnExecutionSuccess")
	h.inner.OnExecutionSuccess(call, execCtx, result, elapsed)
}

func (h *SafeToolHooks) OnExecutionFailure(call fidprovider.ToolCall, execCtx tooling.ExecutionContext, err *toolerr.Error, elapsed time.Duration) {
	defer h.recoverInto("OnExecutionFailure")
	h.inner.OnExecutionFailure(call, execCtx, err, elapsed)
}

// SafeHarnessHooks wraps a harness.HarnessHooks so a panicking
// phase-lifecycle observer can never abort a harness run.
type SafeHarnessHooks struct {
	inner  harness.HarnessHooks
	logger *slog.Logger
}

func NewSafeHarnessHooks(inner harness.HarnessHooks, logger *slog.Logger) *SafeHarnessHooks {
	if inner == nil {
		inner = harness.NoopHarnessHooks{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SafeHarnessHooks{inner: inner, logger: logger.With("component", "harness_hooks")}
}

func (h *SafeHarnessHooks) recoverInto(method string) {
	if p := recover(); p != nil {
		h.logger.Error("hook panic", "method", method, "panic", fmt.Sprintf("%v", p))
	}
}

func (h *SafeHarnessHooks) OnPhaseStart(phase harness.Phase, sessionID fidcommon.SessionID) {
	defer h.recoverInto("OnPhaseStart")
	h.inner.OnPhaseStart(phase, sessionID)
}

func (h *SafeHarnessHooks) OnPhaseSuccess(phase harness.Phase, sessionID fidcommon.SessionID, elapsed time.Duration) {
	defer h.recoverInto("OnPhaseSuccess")
	h.inner.OnPhaseSuccess(phase, sessionID, elapsed)
}

func (h *SafeHarnessHooks) OnPhaseFailure(phase harness.Phase, sessionID fidcommon.SessionID, elapsed time.Duration, err error) {
	defer h.recoverInto("OnPhaseFailure")
	h.inner.OnPhaseFailure(phase, sessionID, elapsed, err)
}

// SafeHarnessObserver wraps a harness.EventObserver (modeled here as
// func(fidchat.Event) to avoid an import cycle with internal/harness) so a
// panicking caller-supplied observer can never abort a streamed turn.
func SafeHarnessObserver(inner func(fidchat.Event), logger *slog.Logger) func(fidchat.Event) {
	if inner == nil {
		return func(fidchat.Event) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "harness_observer")
	return func(event fidchat.Event) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("observer panic", "panic", fmt.Sprintf("%v", p))
			}
		}()
		inner(event)
	}
}
