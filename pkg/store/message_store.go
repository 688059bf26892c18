package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageStore implements raw message persistence. Parts are stored and
// returned opaque; the core never interprets their content (spec §3).
type MessageStore struct {
	pool *pgxpool.Pool
}

// NewMessageStore builds a MessageStore over an open pool.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = `id, session_id, task_id, role, parts, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.SessionID, &m.TaskID, &m.Role, &m.Parts, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage appends one message to a session, optionally already
// attributed to a task.
func (s *MessageStore) InsertMessage(ctx context.Context, sessionID uuid.UUID, taskID *uuid.UUID, role MessageRole, parts []byte) (*Message, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (session_id, task_id, role, parts) VALUES ($1, $2, $3, $4)
		 RETURNING `+messageColumns,
		sessionID, taskID, role, parts)
	return scanMessage(row)
}

// FetchMessage returns one message by id.
func (s *MessageStore) FetchMessage(ctx context.Context, messageID uuid.UUID) (*Message, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, messageID)
	m, err := scanMessage(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	return m, err
}

// ListMessagesByIDs returns messages matching messageIDs, in the order
// the ids were given.
func (s *MessageStore) ListMessagesByIDs(ctx context.Context, messageIDs []uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*Message, len(messageIDs))
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Message, 0, len(messageIDs))
	for _, id := range messageIDs {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

// ListUnassignedMessages returns a session's messages not yet attributed
// to a task, in arrival order — the batch the flush trigger hands to the
// Task-Extraction Agent (spec §4.G).
func (s *MessageStore) ListUnassignedMessages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = $1 AND task_id IS NULL ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListMessagesBySession returns every message in a session in arrival
// order. The Task Extraction flush reads ListUnassignedMessages instead.
func (s *MessageStore) ListMessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
