package google

import (
	"sync"

	"golang.org/x/oauth2"
)

// NotifyingTokenSource wraps a token source and reports every new access
// token it hands out.
type NotifyingTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	last     string
	onChange func(*oauth2.Token)
}

// NewNotifyingTokenSource creates a token source that calls onChange when
// src returns a token whose access token differs from the previous one.
// initial may be nil.
func NewNotifyingTokenSource(src oauth2.TokenSource, initial *oauth2.Token, onChange func(*oauth2.Token)) *NotifyingTokenSource {
	s := &NotifyingTokenSource{src: src, onChange: onChange}
	if initial != nil {
		s.last = initial.AccessToken
	}
	return s
}

// Token implements oauth2.TokenSource.
func (s *NotifyingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := t.AccessToken != s.last
	s.last = t.AccessToken
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(t)
	}
	return t, nil
}
