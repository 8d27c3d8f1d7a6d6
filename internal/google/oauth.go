package google

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth holds the OAuth2 client configuration for the Gmail import flow.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth creates an OAuth configuration from explicit client credentials.
func NewOAuth(clientID, clientSecret, redirectURL string) (*OAuth, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("google client ID and secret are required")
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       DefaultOAuthScopes,
		},
	}, nil
}

// NewOAuthFromFile loads a Google client_secret.json file. A non-empty
// redirectURL overrides the first redirect URI in the file.
func NewOAuthFromFile(path, redirectURL string) (*OAuth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets file: %w", err)
	}
	return NewOAuthFromJSON(data, redirectURL)
}

// NewOAuthFromJSON parses client secrets in the format downloaded from the
// Google Cloud console.
func NewOAuthFromJSON(data []byte, redirectURL string) (*OAuth, error) {
	conf, err := google.ConfigFromJSON(data, DefaultOAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	if redirectURL != "" {
		conf.RedirectURL = redirectURL
	}
	return &OAuth{config: conf}, nil
}

// Config returns a copy of the underlying oauth2 configuration.
func (o *OAuth) Config() oauth2.Config {
	return *o.config
}

// AuthCodeURL returns the consent URL for state. Offline access and a forced
// consent prompt make Google return a refresh token every time.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange swaps an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	t, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return t, nil
}

// HTTPClient returns an HTTP client authorized with token. onRefresh, when
// not nil, is called with every token the source refreshes so the caller can
// persist it. The client is configured to use HTTP/1.1 to avoid HTTP/2
// protocol errors.
func (o *OAuth) HTTPClient(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) *http.Client {
	var ts oauth2.TokenSource = o.config.TokenSource(ctx, token)
	if onRefresh != nil {
		ts = NewNotifyingTokenSource(ts, token, onRefresh)
	}

	// Force HTTP/1.1 by disabling HTTP/2
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(token, ts),
			Base: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				ForceAttemptHTTP2: false,
			},
		},
	}
}
