package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AccessEvent captures one content entitlement decision for audit logging.
// Every summary, transcript and listing request produces one of these; the
// audit trail is how a mis-grant or an unexpected denial gets reconstructed
// after the fact.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. When logging, consider:
//   - Using UserDomain() to get only the domain for metrics/general logs
//   - Only logging full email in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type AccessEvent struct {
	// Operation is the proxy operation (list_meetings, get_summary,
	// get_transcript, create_grant, revoke_grant).
	Operation string

	// User identity (from the per-request token validation)
	UserEmail string
	IsAdmin   bool

	// OccurrenceID is the meeting occurrence this decision concerned, when
	// the operation targets one.
	OccurrenceID string

	// Granted records the decision.
	Granted bool

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email for
// lower-cardinality logging.
func (e *AccessEvent) UserDomain() string {
	return ExtractUserDomain(e.UserEmail)
}

// Decision returns "granted" or "denied".
func (e *AccessEvent) Decision() string {
	if e.Granted {
		return DecisionGranted
	}
	return DecisionDenied
}

// LogAttrs returns slog attributes with cardinality-controlled values
// (user domain only). For the full audit trail use LogAuditAttrs.
func (e *AccessEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", e.Operation),
		slog.String("user_domain", e.UserDomain()),
		slog.String("decision", e.Decision()),
		slog.Bool("is_admin", e.IsAdmin),
		slog.Duration("duration", e.Duration),
	}

	if e.OccurrenceID != "" {
		attrs = append(attrs, slog.String("occurrence_id", e.OccurrenceID))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging, including
// the caller's complete email address.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are stored securely with
// appropriate access controls and retained per compliance requirements.
func (e *AccessEvent) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", e.Operation),
		slog.String("user", e.UserEmail),
		slog.String("decision", e.Decision()),
		slog.Bool("is_admin", e.IsAdmin),
		slog.Duration("duration", e.Duration),
	}

	if e.OccurrenceID != "" {
		attrs = append(attrs, slog.String("occurrence_id", e.OccurrenceID))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", e.SpanID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}

	return attrs
}

// NewAccessEvent creates an AccessEvent with timing started. Call Complete()
// when the decision is made.
func NewAccessEvent(operation string) *AccessEvent {
	return &AccessEvent{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// WithUser sets the caller identity.
func (e *AccessEvent) WithUser(email string, isAdmin bool) *AccessEvent {
	e.UserEmail = email
	e.IsAdmin = isAdmin
	return e
}

// WithOccurrence sets the targeted occurrence.
func (e *AccessEvent) WithOccurrence(occurrenceID string) *AccessEvent {
	e.OccurrenceID = occurrenceID
	return e
}

// WithSpanContext extracts trace context from the current span.
func (e *AccessEvent) WithSpanContext(ctx context.Context) *AccessEvent {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		e.TraceID = span.SpanContext().TraceID().String()
		e.SpanID = span.SpanContext().SpanID().String()
	}
	return e
}

// Complete marks the event as decided and calculates duration.
func (e *AccessEvent) Complete(granted bool, err error) *AccessEvent {
	e.Duration = time.Since(e.StartTime)
	e.Granted = granted
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// AuditLogger provides structured audit logging for access decisions.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogAccessDecision logs one entitlement decision. Denials log at Warn so
// they stand out in operational streams; the attribute set depends on the
// PII configuration.
func (al *AuditLogger) LogAccessDecision(e *AccessEvent) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = e.LogAuditAttrs()
	} else {
		attrs = e.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if e.Granted {
		al.logger.Info("access_granted", args...)
	} else {
		al.logger.Warn("access_denied", args...)
	}
}
