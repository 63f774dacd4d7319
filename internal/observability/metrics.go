package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Provider request performance, token usage, and estimated cost
//   - Tool execution patterns and latencies
//   - Error rates categorized by component and error type
//   - Active chat sessions for capacity planning
//   - Harness run attempts and tool round-trip exhaustion
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	start := time.Now()
//	// ... call provider ...
//	metrics.RecordProviderRequest("anthropic", "claude-3-5-sonnet-latest", "success", time.Since(start).Seconds(), 100, 500)
type Metrics struct {
	// ProviderRequestDuration measures provider API call latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestCounter counts provider requests by provider, model, status.
	// Labels: provider, model, status (success|error)
	ProviderRequestCounter *prometheus.CounterVec

	// ProviderTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	ProviderTokensUsed *prometheus.CounterVec

	// ProviderCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	ProviderCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization.
	// Labels: provider, model
	// Buckets: 1000, 4000, 8000, 16000, 32000, 64000, 128000
	ContextWindowUsed *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (provider|tool|store|harness|chat), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active sessions.
	// Labels: provider
	ActiveSessions *prometheus.GaugeVec

	// SessionDuration measures session lifetime in seconds, from the first
	// turn to the last.
	// Labels: provider
	// Buckets: 60s, 300s, 600s, 1800s, 3600s, 7200s, 14400s, 28800s
	SessionDuration *prometheus.HistogramVec

	// ToolRoundLimitHit counts turns that stopped because Policy's
	// MaxToolRoundTrips was exhausted.
	// Labels: provider
	ToolRoundLimitHit *prometheus.CounterVec

	// RunAttempts counts harness run attempts by outcome, including
	// RunPolicy retries.
	// Labels: status (success|retry|failed)
	RunAttempts *prometheus.CounterVec

	// PhaseDuration measures harness phase execution latency in seconds.
	// Labels: phase (initializer|task_iteration)
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	PhaseDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiddlesticks_provider_request_duration_seconds",
				Help:    "Duration of provider API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ProviderRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_provider_requests_total",
				Help: "Total number of provider requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ProviderTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_provider_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ProviderCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_provider_cost_usd_total",
				Help: "Estimated provider API cost in USD",
			},
			[]string{"provider", "model"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiddlesticks_context_window_tokens",
				Help:    "Context window tokens used per turn",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiddlesticks_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fiddlesticks_active_sessions",
				Help: "Current number of active sessions by provider",
			},
			[]string{"provider"},
		),

		SessionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiddlesticks_session_duration_seconds",
				Help:    "Duration of sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800},
			},
			[]string{"provider"},
		),

		ToolRoundLimitHit: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_tool_round_limit_hit_total",
				Help: "Number of turns that exhausted Policy.MaxToolRoundTrips",
			},
			[]string{"provider"},
		),

		RunAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiddlesticks_run_attempts_total",
				Help: "Total number of harness run attempts by status",
			},
			[]string{"status"},
		),

		PhaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiddlesticks_phase_duration_seconds",
				Help:    "Duration of harness phase execution in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"phase"},
		),
	}
}

// RecordProviderRequest records metrics for a provider API request.
//
// Example:
//
//	start := time.Now()
//	// ... call provider ...
//	metrics.RecordProviderRequest("anthropic", "claude-3-5-sonnet-latest", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordProviderRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.ProviderTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.ProviderTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordProviderCost records estimated API cost.
//
// Example:
//
//	metrics.RecordProviderCost("anthropic", "claude-3-5-sonnet-latest", 0.015)
func (m *Metrics) RecordProviderCost(provider, model string, costUSD float64) {
	m.ProviderCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records context window utilization for a turn.
//
// Example:
//
//	metrics.RecordContextWindow("anthropic", "claude-3-5-sonnet-latest", 45000)
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

// RecordToolExecution records metrics for a tool execution.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("provider", "rate_limited")
//	metrics.RecordError("store", "not_found")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge.
//
// Example:
//
//	metrics.SessionStarted("anthropic")
func (m *Metrics) SessionStarted(provider string) {
	m.ActiveSessions.WithLabelValues(provider).Inc()
}

// SessionEnded decrements the active sessions gauge and records session duration.
//
// Example:
//
//	start := time.Now()
//	// ... session lifecycle ...
//	metrics.SessionEnded("anthropic", time.Since(start).Seconds())
func (m *Metrics) SessionEnded(provider string, durationSeconds float64) {
	m.ActiveSessions.WithLabelValues(provider).Dec()
	m.SessionDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordToolRoundLimitHit records a turn stopping because Policy's
// MaxToolRoundTrips was exhausted.
//
// Example:
//
//	metrics.RecordToolRoundLimitHit("anthropic")
func (m *Metrics) RecordToolRoundLimitHit(provider string) {
	m.ToolRoundLimitHit.WithLabelValues(provider).Inc()
}

// RecordRunAttempt records a harness run attempt.
//
// Example:
//
//	metrics.RecordRunAttempt("success")
//	metrics.RecordRunAttempt("retry")
//	metrics.RecordRunAttempt("failed")
func (m *Metrics) RecordRunAttempt(status string) {
	m.RunAttempts.WithLabelValues(status).Inc()
}

// RecordPhase records a harness phase's execution duration.
//
// Example:
//
//	start := time.Now()
//	// ... run phase ...
//	metrics.RecordPhase("task_iteration", time.Since(start).Seconds())
func (m *Metrics) RecordPhase(phase string, durationSeconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}
