package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrOperation  = "operation"
	attrResult     = "result"
	attrTool       = "tool"
	attrEvent      = "event"
	attrProvenance = "provenance"
	attrDecision   = "decision"
	attrUserDomain = "user_domain"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Platform API metrics
	platformOperationsTotal   metric.Int64Counter
	platformOperationDuration metric.Float64Histogram
	tokenRefreshTotal         metric.Int64Counter

	// Ingestion metrics
	webhookEventsTotal  metric.Int64Counter
	recordsWrittenTotal metric.Int64Counter
	recordsDeletedTotal metric.Int64Counter

	// Access control metrics
	accessDecisionsTotal metric.Int64Counter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.platformOperationsTotal, err = meter.Int64Counter(
		"platform_api_operations_total",
		metric.WithDescription("Total number of meeting-platform API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform_api_operations_total counter: %w", err)
	}

	m.platformOperationDuration, err = meter.Float64Histogram(
		"platform_api_operation_duration_seconds",
		metric.WithDescription("Meeting-platform API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform_api_operation_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"service_token_refresh_total",
		metric.WithDescription("Total number of service credential token refreshes"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service_token_refresh_total counter: %w", err)
	}

	m.webhookEventsTotal, err = meter.Int64Counter(
		"webhook_events_total",
		metric.WithDescription("Total number of inbound webhook events by type and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_events_total counter: %w", err)
	}

	m.recordsWrittenTotal, err = meter.Int64Counter(
		"ledger_records_written_total",
		metric.WithDescription("Total number of participation records written, by provenance"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger_records_written_total counter: %w", err)
	}

	m.recordsDeletedTotal, err = meter.Int64Counter(
		"ledger_records_deleted_total",
		metric.WithDescription("Total number of participation records deleted by retention sweeps"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger_records_deleted_total counter: %w", err)
	}

	m.accessDecisionsTotal, err = meter.Int64Counter(
		"access_decisions_total",
		metric.WithDescription("Total number of content access decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access_decisions_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPlatformOperation records one outbound platform API operation.
//
// Parameters:
//   - operation: operation type (details, participants, summary, recordings, download, users, report)
//   - status: "success" or "error"
//   - duration: time taken for the operation
func (m *Metrics) RecordPlatformOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.platformOperationsTotal == nil || m.platformOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.platformOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.platformOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records a service credential refresh attempt.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordWebhookEvent records an inbound webhook event and its outcome.
// Event is the platform event type; status is one of "success", "error",
// "rejected", "ignored".
func (m *Metrics) RecordWebhookEvent(ctx context.Context, event, status string) {
	if m.webhookEventsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrEvent, event),
		attribute.String(attrStatus, status),
	}
	m.webhookEventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRecordsWritten counts participation records written to the ledger,
// labeled by provenance.
func (m *Metrics) RecordRecordsWritten(ctx context.Context, provenance string, count int) {
	if m.recordsWrittenTotal == nil || count <= 0 {
		return
	}

	m.recordsWrittenTotal.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String(attrProvenance, provenance)))
}

// RecordRecordsDeleted counts records removed by a retention sweep.
func (m *Metrics) RecordRecordsDeleted(ctx context.Context, count int) {
	if m.recordsDeletedTotal == nil || count <= 0 {
		return
	}

	m.recordsDeletedTotal.Add(ctx, int64(count))
}

// RecordAccessDecision records one content entitlement decision.
//
// Parameters:
//   - operation: the proxy operation (list_meetings, get_summary, get_transcript)
//   - decision: "granted" or "denied"
//   - userEmail: the caller; reduced to its domain unless detailed labels are on
func (m *Metrics) RecordAccessDecision(ctx context.Context, operation, decision, userEmail string) {
	if m.accessDecisionsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrDecision, decision),
	}
	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && userEmail != "" {
		attrs = append(attrs, attribute.String(attrUserDomain, ExtractUserDomain(userEmail)))
	}

	m.accessDecisionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
