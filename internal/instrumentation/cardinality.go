package instrumentation

import "strings"

// knownPaths are the routes reported as-is in HTTP metrics.
var knownPaths = map[string]bool{
	"/api/analyze-document":  true,
	"/api/health":            true,
	"/api/gmail/auth-url":    true,
	"/api/gmail/callback":    true,
	"/api/gmail/import":      true,
	"/api/gmail/test-search": true,
	"/api/documents":         true,
	"/healthz":               true,
	"/healthz/detailed":      true,
	"/readyz":                true,
}

// NormalizePath maps a request path to a bounded label value. Trailing
// slashes are ignored and unknown paths become "other".
//
// Example:
//
//	NormalizePath("/api/gmail/import/")  // "/api/gmail/import"
//	NormalizePath("/wp-login.php")       // "other"
func NormalizePath(path string) string {
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if knownPaths[path] {
		return path
	}
	return "other"
}
