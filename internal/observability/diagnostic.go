// Package observability provides diagnostic event types and emission.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticSessionState represents the state of a session.
type DiagnosticSessionState string

const (
	SessionStateIdle       DiagnosticSessionState = "idle"
	SessionStateProcessing DiagnosticSessionState = "processing"
	SessionStateWaiting    DiagnosticSessionState = "waiting"
)

// DiagnosticEventType identifies the type of diagnostic event.
type DiagnosticEventType string

const (
	EventTypeProviderUsage       DiagnosticEventType = "provider.usage"
	EventTypeToolRoundLimit      DiagnosticEventType = "turn.tool_round_limit"
	EventTypeSessionState        DiagnosticEventType = "session.state"
	EventTypeSessionStuck        DiagnosticEventType = "session.stuck"
	EventTypePhaseStart          DiagnosticEventType = "harness.phase.start"
	EventTypePhaseComplete       DiagnosticEventType = "harness.phase.complete"
	EventTypeRunAttempt          DiagnosticEventType = "run.attempt"
	EventTypeDiagnosticHeartbeat DiagnosticEventType = "diagnostic.heartbeat"
)

// DiagnosticEvent is the base event structure.
type DiagnosticEvent struct {
	Type DiagnosticEventType `json:"type"`
	Seq  int64               `json:"seq"`
	Ts   int64               `json:"ts"`
}

// ProviderUsageEvent tracks token usage for a provider request.
type ProviderUsageEvent struct {
	DiagnosticEvent
	SessionID  string          `json:"session_id,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
	Usage      UsageDetails    `json:"usage"`
	Context    *ContextDetails `json:"context,omitempty"`
	CostUSD    float64         `json:"cost_usd,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// UsageDetails contains token usage breakdown.
type UsageDetails struct {
	Input        int64 `json:"input,omitempty"`
	Output       int64 `json:"output,omitempty"`
	CacheRead    int64 `json:"cache_read,omitempty"`
	CacheWrite   int64 `json:"cache_write,omitempty"`
	PromptTokens int64 `json:"prompt_tokens,omitempty"`
	Total        int64 `json:"total,omitempty"`
}

// ContextDetails contains context window information.
type ContextDetails struct {
	Limit int64 `json:"limit,omitempty"`
	Used  int64 `json:"used,omitempty"`
}

// ToolRoundLimitEvent tracks a turn stopping because Policy's
// MaxToolRoundTrips was exhausted.
type ToolRoundLimitEvent struct {
	DiagnosticEvent
	SessionID string `json:"session_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
	RoundTrip int    `json:"round_trip"`
}

// SessionStateEvent tracks session state changes.
type SessionStateEvent struct {
	DiagnosticEvent
	SessionID string                 `json:"session_id,omitempty"`
	PrevState DiagnosticSessionState `json:"prev_state,omitempty"`
	State     DiagnosticSessionState `json:"state"`
	Reason    string                 `json:"reason,omitempty"`
}

// SessionStuckEvent tracks sessions stuck in processing, e.g. a provider
// call that has not returned within the expected window.
type SessionStuckEvent struct {
	DiagnosticEvent
	SessionID string                 `json:"session_id,omitempty"`
	State     DiagnosticSessionState `json:"state"`
	AgeMs     int64                  `json:"age_ms"`
}

// PhaseStartEvent tracks the start of a harness phase.
type PhaseStartEvent struct {
	DiagnosticEvent
	SessionID string `json:"session_id,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	Phase     string `json:"phase"`
}

// PhaseCompleteEvent tracks the completion of a harness phase.
type PhaseCompleteEvent struct {
	DiagnosticEvent
	SessionID  string `json:"session_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	Phase      string `json:"phase"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunAttemptEvent tracks run attempts.
type RunAttemptEvent struct {
	DiagnosticEvent
	SessionID string `json:"session_id,omitempty"`
	RunID     string `json:"run_id"`
	Attempt   int    `json:"attempt"`
}

// DiagnosticHeartbeatEvent tracks diagnostic heartbeats.
type DiagnosticHeartbeatEvent struct {
	DiagnosticEvent
	ActiveSessions int `json:"active_sessions"`
	StuckSessions  int `json:"stuck_sessions"`
}

// DiagnosticEventPayload is a union type for all diagnostic events.
type DiagnosticEventPayload interface {
	EventType() DiagnosticEventType
	Sequence() int64
	Timestamp() int64
}

// Implement DiagnosticEventPayload for all event types
func (e *DiagnosticEvent) EventType() DiagnosticEventType { return e.Type }
func (e *DiagnosticEvent) Sequence() int64                { return e.Seq }
func (e *DiagnosticEvent) Timestamp() int64               { return e.Ts }

// DiagnosticListener receives diagnostic events.
type DiagnosticListener func(event DiagnosticEventPayload)

// DiagnosticEmitter manages diagnostic event emission.
type DiagnosticEmitter struct {
	mu        sync.RWMutex
	seq       int64
	enabled   bool
	listeners []DiagnosticListener
}

var globalEmitter = &DiagnosticEmitter{}

// SetDiagnosticsEnabled enables or disables diagnostic events.
func SetDiagnosticsEnabled(enabled bool) {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.enabled = enabled
}

// IsDiagnosticsEnabled returns whether diagnostics are enabled.
func IsDiagnosticsEnabled() bool {
	globalEmitter.mu.RLock()
	defer globalEmitter.mu.RUnlock()
	return globalEmitter.enabled
}

// OnDiagnosticEvent registers a listener for diagnostic events.
func OnDiagnosticEvent(listener DiagnosticListener) func() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.listeners = append(globalEmitter.listeners, listener)

	// Return unsubscribe function
	return func() {
		globalEmitter.mu.Lock()
		defer globalEmitter.mu.Unlock()
		for i, l := range globalEmitter.listeners {
			// Compare function pointers (this is a simplification)
			if &l == &listener {
				globalEmitter.listeners = append(globalEmitter.listeners[:i], globalEmitter.listeners[i+1:]...)
				break
			}
		}
	}
}

// nextSeq returns the next sequence number.
func nextSeq() int64 {
	return atomic.AddInt64(&globalEmitter.seq, 1)
}

// emit sends an event to all listeners.
func emit(event DiagnosticEventPayload) {
	globalEmitter.mu.RLock()
	if !globalEmitter.enabled {
		globalEmitter.mu.RUnlock()
		return
	}
	listeners := make([]DiagnosticListener, len(globalEmitter.listeners))
	copy(listeners, globalEmitter.listeners)
	globalEmitter.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					_ = recovered
				}
			}() // Ignore listener panics
			listener(event)
		}()
	}
}

// EmitProviderUsage emits a provider usage event.
func EmitProviderUsage(e *ProviderUsageEvent) {
	e.Type = EventTypeProviderUsage
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitToolRoundLimit emits a tool round limit event.
func EmitToolRoundLimit(e *ToolRoundLimitEvent) {
	e.Type = EventTypeToolRoundLimit
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSessionState emits a session state event.
func EmitSessionState(e *SessionStateEvent) {
	e.Type = EventTypeSessionState
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSessionStuck emits a session stuck event.
func EmitSessionStuck(e *SessionStuckEvent) {
	e.Type = EventTypeSessionStuck
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitPhaseStart emits a harness phase start event.
func EmitPhaseStart(e *PhaseStartEvent) {
	e.Type = EventTypePhaseStart
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitPhaseComplete emits a harness phase completion event.
func EmitPhaseComplete(e *PhaseCompleteEvent) {
	e.Type = EventTypePhaseComplete
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitRunAttempt emits a run attempt event.
func EmitRunAttempt(e *RunAttemptEvent) {
	e.Type = EventTypeRunAttempt
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitDiagnosticHeartbeat emits a diagnostic heartbeat event.
func EmitDiagnosticHeartbeat(e *DiagnosticHeartbeatEvent) {
	e.Type = EventTypeDiagnosticHeartbeat
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// ResetDiagnosticsForTest resets diagnostic state for testing.
func ResetDiagnosticsForTest() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	atomic.StoreInt64(&globalEmitter.seq, 0)
	globalEmitter.listeners = nil
}
