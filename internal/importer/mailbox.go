package importer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxintake/internal/gmail"
	"github.com/teemow/inboxintake/internal/google"
	"github.com/teemow/inboxintake/internal/session"
)

// Mailbox is the mail provider as seen by the importer.
type Mailbox interface {
	ListMessages(ctx context.Context, query string, maxResults int64) ([]string, error)
	GetMessage(ctx context.Context, messageID string) (*gmail.Message, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// MailboxFactory opens the mailbox of an authorized session. onRefresh is
// called with tokens refreshed while the mailbox is in use.
type MailboxFactory interface {
	Open(ctx context.Context, s *session.Session, onRefresh func(*oauth2.Token)) (Mailbox, error)
}

// GmailFactory opens Gmail mailboxes using the Google OAuth configuration.
type GmailFactory struct {
	OAuth       *google.OAuth
	Recorder    gmail.APIRecorder
	CallTimeout time.Duration
}

// Open implements MailboxFactory.
func (f *GmailFactory) Open(ctx context.Context, s *session.Session, onRefresh func(*oauth2.Token)) (Mailbox, error) {
	if f.OAuth == nil {
		return nil, fmt.Errorf("google oauth is not configured")
	}
	httpClient := f.OAuth.HTTPClient(ctx, s.Token, onRefresh)
	return gmail.NewClient(ctx, httpClient, nil, gmail.WithRecorder(f.Recorder), gmail.WithCallTimeout(f.CallTimeout))
}
