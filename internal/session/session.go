package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when no session exists for a state.
var ErrNotFound = errors.New("session not found")

// Session is the credential record for one connected mailbox.
type Session struct {
	UserID    string        `json:"user_id"`
	Token     *oauth2.Token `json:"token,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Authorized reports whether the session carries a usable token.
func (s *Session) Authorized() bool {
	return s != nil && s.Token != nil && (s.Token.AccessToken != "" || s.Token.RefreshToken != "")
}

// Store persists sessions by state.
type Store interface {
	Get(ctx context.Context, state string) (*Session, error)
	Put(ctx context.Context, state string, s *Session) error
	Delete(ctx context.Context, state string) error
}

// NewState returns a fresh opaque state value.
func NewState() string {
	return uuid.NewString()
}
