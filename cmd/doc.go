// Package cmd implements the command-line interface for inboxintake.
//
// This package provides the following commands:
//   - serve: Start the HTTP API (document analysis, Gmail import, documents)
//   - classify: Classify a single local image or PDF
//   - import: Import Gmail attachments for an authorized session
//   - version: Display version information
//
// Configuration is read from an optional YAML file (--config or
// CONFIG_PATH), then environment variables, then flags.
package cmd
