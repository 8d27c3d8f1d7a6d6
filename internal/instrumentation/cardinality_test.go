package instrumentation

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/gmail/import", "/api/gmail/import"},
		{"/api/gmail/import/", "/api/gmail/import"},
		{"/api/analyze-document", "/api/analyze-document"},
		{"/api/documents", "/api/documents"},
		{"/healthz", "/healthz"},
		{"/", "other"},
		{"/wp-login.php", "other"},
		{"/api/gmail/import/123", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
