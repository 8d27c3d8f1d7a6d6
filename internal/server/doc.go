// Package server exposes the document intake HTTP API.
//
// # Routes
//
//   - POST /api/analyze-document: classify an uploaded image or PDF
//   - GET  /api/gmail/auth-url: start the Gmail consent flow for a user
//   - GET  /api/gmail/callback: OAuth redirect target, stores the token
//   - POST /api/gmail/import: import attachments for an authorized state
//   - POST /api/gmail/test-search: run diagnostic mailbox searches
//   - GET  /api/documents: list a user's imported documents
//   - GET  /api/health, /healthz, /readyz, /healthz/detailed: health probes
//
// Every request passes through CORS handling, HTTP metrics and an
// OpenTelemetry server span. Prometheus metrics are served separately by
// MetricsServer on their own port.
package server
