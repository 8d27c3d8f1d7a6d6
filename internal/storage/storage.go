package storage

import (
	"context"
	"errors"
	"time"

	"github.com/teemow/inboxintake/internal/gmail"
)

// ErrDuplicate is returned by Insert when a row for (user, path) exists.
var ErrDuplicate = errors.New("document already exists")

// Document is a row of the documents table.
type Document struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	AISummary  string    `json:"ai_summary"`
	Department string    `json:"department"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// ObjectStore stores attachment bytes. Put overwrites existing objects.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// MetadataStore stores document rows.
type MetadataStore interface {
	Exists(ctx context.Context, userID, path string) (bool, error)
	Insert(ctx context.Context, doc Document) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Document, error)
}

// StoragePath returns the object path of filename in userID's folder.
func StoragePath(userID, filename string) string {
	return userID + "/" + gmail.SanitizeFilename(filename)
}
