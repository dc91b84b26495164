// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the meetbridge server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, platform API calls, and ledger activity
//   - Distributed tracing for request flows and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Platform API Metrics:
//   - platform_operations_total: Counter of upstream API operations by operation and status
//   - platform_operation_duration_seconds: Histogram of upstream API operation durations
//   - service_token_refresh_total: Counter of service token exchanges by result
//
// Ledger Metrics:
//   - webhook_events_total: Counter of webhook events by event type and status
//   - ledger_records_written_total: Counter of participation records written by provenance
//   - ledger_records_deleted_total: Counter of records removed by the retention sweeper
//   - access_decisions_total: Counter of access-control decisions by operation and decision
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - MCP tool invocations (tool.<name>)
//   - Upstream platform API calls (platform.<service>.<operation>)
//   - Webhook ingestion and backfill runs
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: meetbridge)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "meetbridge",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/api/meetings", 200, time.Since(start))
//
//	// Record an upstream API operation
//	recorder.RecordPlatformOperation(ctx, "details", "success", time.Since(start))
//
//	// Record an MCP tool invocation
//	recorder.RecordToolInvocation(ctx, "list_meetings", "success", time.Since(start))
package instrumentation
