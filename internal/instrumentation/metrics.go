package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrCategory  = "category"
)

var (
	httpBuckets   = []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0}
	googleBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	importBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600}
)

// Metrics provides methods for recording observability metrics. The zero
// value records nothing.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	classificationsTotal   metric.Int64Counter
	classificationDuration metric.Float64Histogram

	importOutcomesTotal metric.Int64Counter
	importRunsTotal     metric.Int64Counter
	importRunDuration   metric.Float64Histogram

	// detailedLabels keeps raw HTTP paths
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}
	b := instrumentBuilder{meter: meter}

	m.httpRequestsTotal = b.counter("http_requests_total", "Total number of HTTP requests", "{request}")
	m.httpRequestDuration = b.histogram("http_request_duration_seconds", "HTTP request duration in seconds", httpBuckets)

	m.googleAPIOperationsTotal = b.counter("google_api_operations_total", "Total number of Google API operations", "{operation}")
	m.googleAPIOperationDuration = b.histogram("google_api_operation_duration_seconds", "Google API operation duration in seconds", googleBuckets)

	m.oauthAuthTotal = b.counter("oauth_auth_total", "Total number of OAuth authentication attempts", "{attempt}")
	m.oauthTokenRefreshTotal = b.counter("oauth_token_refresh_total", "Total number of OAuth token refreshes", "{attempt}")

	m.classificationsTotal = b.counter("classifications_total", "Total number of document classifications", "{document}")
	m.classificationDuration = b.histogram("classification_duration_seconds", "Document classification duration in seconds", googleBuckets)

	m.importOutcomesTotal = b.counter("import_outcomes_total", "Total number of attachment import outcomes", "{attachment}")
	m.importRunsTotal = b.counter("import_runs_total", "Total number of import runs", "{run}")
	m.importRunDuration = b.histogram("import_run_duration_seconds", "Import run duration in seconds", importBuckets)

	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// instrumentBuilder creates instruments and keeps the first error.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, desc, unit string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		b.err = fmt.Errorf("failed to create %s counter: %w", name, err)
	}
	return c
}

func (b *instrumentBuilder) histogram(name, desc string, buckets []float64) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		b.err = fmt.Errorf("failed to create %s histogram: %w", name, err)
	}
	return h
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	if !m.detailedLabels {
		path = NormalizePath(path)
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)

	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records a Google API call.
//
// Parameters:
//   - service: gmail or gemini
//   - operation: list, get, attachment, generate
//   - status: "success" or "error"
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records a completed or failed OAuth consent flow.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records an OAuth token refresh.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordClassification records one classifier run.
func (m *Metrics) RecordClassification(ctx context.Context, category, result string, duration time.Duration) {
	if m.classificationsTotal == nil || m.classificationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrCategory, category),
		attribute.String(attrResult, result),
	)

	m.classificationsTotal.Add(ctx, 1, attrs)
	m.classificationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordImportOutcome records the outcome of one attachment.
func (m *Metrics) RecordImportOutcome(ctx context.Context, status string) {
	if m.importOutcomesTotal == nil {
		return // Instrumentation not initialized
	}
	m.importOutcomesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordImportRun records a finished import run.
func (m *Metrics) RecordImportRun(ctx context.Context, result string, duration time.Duration) {
	if m.importRunsTotal == nil || m.importRunDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))
	m.importRunsTotal.Add(ctx, 1, attrs)
	m.importRunDuration.Record(ctx, duration.Seconds(), attrs)
}
