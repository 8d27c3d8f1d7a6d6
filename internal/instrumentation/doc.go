// Package instrumentation provides OpenTelemetry metrics and tracing for the
// document intake service.
//
// # Metrics
//
// HTTP:
//   - http_requests_total: HTTP requests by method, path and status
//   - http_request_duration_seconds: HTTP request durations
//
// Google APIs:
//   - google_api_operations_total: Gmail and Gemini calls by service, operation and status
//   - google_api_operation_duration_seconds: their durations
//
// OAuth:
//   - oauth_auth_total: completed consent flows by result
//   - oauth_token_refresh_total: token refreshes by result
//
// Documents:
//   - classifications_total: classifier runs by document category and result
//   - classification_duration_seconds: classifier run durations
//   - import_outcomes_total: per-attachment import outcomes by status
//   - import_runs_total: import runs by result
//   - import_run_duration_seconds: import run durations
//
// # Configuration
//
// DefaultConfig reads the standard OpenTelemetry environment variables plus:
//   - INSTRUMENTATION_ENABLED: enable or disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m := provider.Metrics()
//	m.RecordClassification(ctx, "pdf", "success", time.Since(start))
package instrumentation
