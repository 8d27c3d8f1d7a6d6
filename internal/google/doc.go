// Package google provides the OAuth2 pieces used to access a user's Gmail
// account: the consent URL, the code exchange and an authorized HTTP client.
//
// Client credentials come either from explicit values or from a
// client_secret.json file. Tokens are never stored here; the session package
// owns them, and HTTPClient reports refreshed tokens through a callback so
// they can be written back.
package google
