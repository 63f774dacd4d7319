// Package observability provides monitoring and debugging capabilities for
// fiddlesticks through metrics, structured logging, and distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Provider request latency, token usage, and estimated cost
//   - Tool execution performance
//   - Error rates by component and type
//   - Active chat session counts
//   - Harness run attempts and phase durations
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	defer prometheus.Handler() // Expose metrics endpoint
//
//	// Track a provider request
//	start := time.Now()
//	// ... call provider ...
//	metrics.RecordProviderRequest("anthropic", "claude-3-5-sonnet-latest", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "running turn",
//	    "provider", "anthropic",
//	    "user_id", userID,
//	    "input_length", len(userInput),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "provider request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across components:
//   - End-to-end request visualization
//   - Performance bottleneck identification
//   - Service dependency mapping
//   - Error correlation across components
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "fiddlesticks",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace a harness phase
//	ctx, span := tracer.TraceHarnessPhase(ctx, "task_iteration", sessionID)
//	defer span.End()
//
//	// Trace provider requests
//	ctx, providerSpan := tracer.TraceProviderRequest(ctx, "anthropic", "claude-3-5-sonnet-latest")
//	defer providerSpan.End()
//	tracer.SetAttributes(providerSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "web_search")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddUserID(ctx, "user-789")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "running turn") // Includes request_id, session_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Integration Example
//
// Complete example integrating all three components around a single turn:
//
//	func RunTurn(ctx context.Context, req fidchat.TurnRequest) (*fidchat.TurnResult, error) {
//	    ctx = observability.AddRequestID(ctx, generateID())
//	    ctx = observability.AddSessionID(ctx, string(req.Session.ID))
//
//	    ctx, span := tracer.TraceHarnessPhase(ctx, "task_iteration", string(req.Session.ID))
//	    defer span.End()
//
//	    metrics.SessionStarted(string(req.Session.Provider))
//	    defer metrics.SessionEnded(string(req.Session.Provider), time.Since(start).Seconds())
//
//	    logger.Info(ctx, "running turn", "input_length", len(req.UserInput))
//
//	    providerStart := time.Now()
//	    ctx, providerSpan := tracer.TraceProviderRequest(ctx, string(req.Session.Provider), req.Session.Model)
//	    defer providerSpan.End()
//
//	    result, err := service.RunTurn(ctx, req)
//	    duration := time.Since(providerStart).Seconds()
//
//	    if err != nil {
//	        metrics.RecordError("chat", "turn_failed")
//	        tracer.RecordError(providerSpan, err)
//	        logger.Error(ctx, "turn failed", "error", err)
//	        metrics.RecordProviderRequest(string(req.Session.Provider), req.Session.Model, "error", duration, 0, 0)
//	        return nil, err
//	    }
//
//	    metrics.RecordProviderRequest(string(req.Session.Provider), req.Session.Model, "success",
//	        duration, result.Usage.PromptTokens, result.Usage.CompletionTokens)
//	    logger.Info(ctx, "turn completed",
//	        "duration_ms", duration*1000,
//	        "tokens", result.Usage.CompletionTokens)
//
//	    return result, nil
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("FIDDLESTICKS_LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "fiddlesticks",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Provider request rate
//	rate(fiddlesticks_provider_requests_total[5m])
//
//	# Provider request latency (95th percentile)
//	histogram_quantile(0.95, rate(fiddlesticks_provider_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(fiddlesticks_errors_total[5m])
//
//	# Active sessions
//	fiddlesticks_active_sessions
//
//	# Tool execution time
//	rate(fiddlesticks_tool_execution_duration_seconds_sum[5m]) /
//	rate(fiddlesticks_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: fiddlesticks_errors_total > threshold
//   - High provider latency: p95 latency > 10s
//   - Tool round-trip exhaustion: rate(fiddlesticks_tool_round_limit_hit_total) > threshold
//   - Session accumulation: fiddlesticks_active_sessions growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
