package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// DefaultListLimit caps ListByUser when no limit is given.
const DefaultListLimit = 100

// querier is the subset of pgxpool.Pool used by PostgresStore.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore provides document metadata operations in Postgres.
type PostgresStore struct {
	db querier
}

// NewPool connects to Postgres and verifies the connection.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a metadata store backed by the given pool.
// It ensures the documents table exists on creation.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	slog.Info("document store initialised")
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id          BIGSERIAL PRIMARY KEY,
			user_id     TEXT NOT NULL,
			name        TEXT NOT NULL,
			path        TEXT NOT NULL,
			mime_type   TEXT NOT NULL DEFAULT '',
			size_bytes  BIGINT NOT NULL DEFAULT 0,
			ai_summary  TEXT NOT NULL DEFAULT '',
			department  TEXT NOT NULL DEFAULT '',
			is_read     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, path)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_user_created ON documents(user_id, created_at DESC);
	`)
	return err
}

// Exists reports whether a row for (userID, path) exists.
func (s *PostgresStore) Exists(ctx context.Context, userID, path string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM documents WHERE user_id = $1 AND path = $2)
	`, userID, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document exists: %w", err)
	}
	return exists, nil
}

// Insert adds a document row. It returns ErrDuplicate when the row exists.
func (s *PostgresStore) Insert(ctx context.Context, d Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents
			(user_id, name, path, mime_type, size_bytes, ai_summary, department, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.UserID, d.Name, d.Path, d.MimeType, d.SizeBytes, d.AISummary, d.Department, d.IsRead)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// ListByUser returns the user's newest documents first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, path, mime_type, size_bytes,
		       ai_summary, department, is_read, created_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// collectDocuments scans multiple rows into a slice of Documents.
func collectDocuments(rows pgx.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Name, &d.Path, &d.MimeType, &d.SizeBytes,
			&d.AISummary, &d.Department, &d.IsRead, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
