package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/inboxintake/internal/logging"
)

// ImportAudit captures one import run for the audit log.
//
// # Privacy Considerations
//
// UserID identifies a person. Unless the AuditLogger is configured with
// IncludePII it is logged only as a hash.
type ImportAudit struct {
	UserID   string
	Query    string
	Counts   map[string]int
	Imported int

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewImportAudit creates an ImportAudit with timing started.
// Call Complete when the run finishes.
func NewImportAudit(userID, query string) *ImportAudit {
	return &ImportAudit{
		UserID:    userID,
		Query:     query,
		StartTime: time.Now(),
	}
}

// WithSpanContext extracts trace context from the current span.
func (a *ImportAudit) WithSpanContext(ctx context.Context) *ImportAudit {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		a.TraceID = span.SpanContext().TraceID().String()
		a.SpanID = span.SpanContext().SpanID().String()
	}
	return a
}

// WithOutcome records the run's outcome counts by status.
func (a *ImportAudit) WithOutcome(imported int, counts map[string]int) *ImportAudit {
	a.Imported = imported
	a.Counts = counts
	return a
}

// Complete marks the run as finished and calculates duration.
func (a *ImportAudit) Complete(err error) *ImportAudit {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// Status returns "success" or "error" based on the Success field.
func (a *ImportAudit) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the run. The user is included raw
// only when includePII is set.
func (a *ImportAudit) LogAttrs(includePII bool) []slog.Attr {
	attrs := make([]slog.Attr, 0, 10)
	if includePII {
		attrs = append(attrs, slog.String("user", a.UserID))
	} else {
		attrs = append(attrs, logging.UserHash(a.UserID))
	}
	attrs = append(attrs,
		logging.Query(a.Query),
		slog.Int("imported", a.Imported),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	)

	for status, n := range a.Counts {
		attrs = append(attrs, slog.Int("outcome_"+status, n))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID), slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}
	return attrs
}

// AuditLogger writes import audit records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogImport logs a finished import run.
func (al *AuditLogger) LogImport(a *ImportAudit) {
	if al == nil || !al.enabled {
		return
	}

	attrs := a.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if a.Success {
		al.logger.Info("import_audit", args...)
	} else {
		al.logger.Warn("import_audit_failed", args...)
	}
}
