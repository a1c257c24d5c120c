package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/dbx"
)

// Repository persists one access token per session.
type Repository interface {
	// Get returns the stored token; found is false when the session has none.
	Get(ctx context.Context, sessionID string) (token string, found bool, err error)
	Put(ctx context.Context, sessionID string, token string) error
	Delete(ctx context.Context, sessionID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, sessionID string) (string, bool, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `SELECT token FROM session_tokens WHERE session_id = ?`, sessionID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get session token[%s]: %w", sessionID, err)
	}
	return token, true, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, sessionID string, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_tokens (session_id, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, sessionID, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put session token[%s]: %w", sessionID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session token[%s]: %w", sessionID, err)
	}
	return nil
}
