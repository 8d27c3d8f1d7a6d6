package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the Google OAuth scopes the importer requests.
// Read-only Gmail access is enough to search messages and download
// attachments.
var DefaultOAuthScopes = []string{
	gmail.GmailReadonlyScope,
}
