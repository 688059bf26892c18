package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionStore implements session CRUD and the one-time space link
// (spec §3: SpaceID is nil until first linked, then immutable).
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore builds a SessionStore over an open pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.SpaceID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

const sessionColumns = `id, project_id, space_id, created_at, updated_at`

// CreateSession inserts a new session, optionally pre-linked to a space.
func (s *SessionStore) CreateSession(ctx context.Context, projectID uuid.UUID, spaceID *uuid.UUID) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (project_id, space_id) VALUES ($1, $2) RETURNING `+sessionColumns,
		projectID, spaceID)
	return scanSession(row)
}

// FetchSession returns one session by id.
func (s *SessionStore) FetchSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	sess, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return sess, err
}

// LinkSpace sets a session's space_id the first time it's observed,
// rejecting any attempt to relink an already-linked session (spec §3
// invariant: SpaceID is immutable once set).
func (s *SessionStore) LinkSpace(ctx context.Context, sessionID uuid.UUID, spaceID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var existing *uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT space_id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&existing); err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: session %s is already linked to a space", ErrConflict, sessionID)
	}

	if _, err := tx.Exec(ctx, `UPDATE sessions SET space_id = $1, updated_at = now() WHERE id = $2`, spaceID, sessionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
