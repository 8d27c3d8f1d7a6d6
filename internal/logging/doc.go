// Package logging provides structured logging utilities for inboxintake.
//
// It centralizes attribute naming so that classifier, importer and HTTP
// logs can be correlated, and it builds the process-wide slog handler from
// the configured level and format.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "importer.import")
//	logger.Info("attachment imported",
//	    logging.Filename(name),
//	    logging.UserHash(userID),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - User identifiers are hashed so logs can be correlated without PII
//   - OAuth tokens and state values are never logged directly
package logging
