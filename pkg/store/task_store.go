package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskStore implements spec §3's Task operations: ordering, status
// transitions, progress/preference accumulation, and message linkage.
// Grounded on original_source's service/data/task.py.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore builds a TaskStore over an open pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var dataRaw, rawIDsRaw []byte
	if err := row.Scan(&t.ID, &t.SessionID, &t.Order, &t.Status, &t.IsPlanning,
		&t.SpaceDigested, &dataRaw, &rawIDsRaw, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataRaw, &t.Data); err != nil {
		return nil, fmt.Errorf("decode task data: %w", err)
	}
	if err := json.Unmarshal(rawIDsRaw, &t.RawMessageIDs); err != nil {
		return nil, fmt.Errorf("decode raw_message_ids: %w", err)
	}
	return &t, nil
}

const taskColumns = `id, session_id, task_order, status, is_planning, space_digested, data, raw_message_ids, created_at, updated_at`

// FetchPlanningTask returns the session's planning task, or nil if none
// exists yet. Mirrors fetch_planning_task.
func (s *TaskStore) FetchPlanningTask(ctx context.Context, sessionID uuid.UUID) (*Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE session_id = $1 AND is_planning = true`,
		sessionID)
	t, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FetchTask returns one task by id.
func (s *TaskStore) FetchTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	t, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return t, err
}

// ListCurrentTasks returns non-planning tasks ordered ascending by Order,
// optionally filtered by status. Mirrors fetch_current_tasks.
func (s *TaskStore) ListCurrentTasks(ctx context.Context, sessionID uuid.UUID, status *TaskStatus) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE session_id = $1 AND is_planning = false`
	args := []any{sessionID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY task_order ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListPrecedingTasks returns up to limit non-planning tasks with
// order < beforeOrder, ascending by order, with RawMessageIDs left empty
// (the original never loads message bodies for this section — see
// SPEC_FULL.md §3). Mirrors fetch_previous_tasks_without_message_ids.
func (s *TaskStore) ListPrecedingTasks(ctx context.Context, sessionID uuid.UUID, beforeOrder int, limit int) ([]*Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE session_id = $1 AND is_planning = false AND task_order < $2
		 ORDER BY task_order DESC LIMIT $3`,
		sessionID, beforeOrder, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		t.RawMessageIDs = nil
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into ascending order
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
	return tasks, nil
}

// UpdateTaskParams carries the optional fields of an update_task call;
// nil means "leave unchanged".
type UpdateTaskParams struct {
	Status    *TaskStatus
	PatchData map[string]any // merged into Data's underlying JSON (read-modify-write)
}

// UpdateTask applies status/data changes to a task, enforcing the
// success→anything rejection and failed→running allowance (spec §4.G).
func (s *TaskStore) UpdateTask(ctx context.Context, taskID uuid.UUID, params UpdateTaskParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current TaskStatus
	var dataRaw []byte
	err = tx.QueryRow(ctx, `SELECT status, data FROM tasks WHERE id = $1 FOR UPDATE`, taskID).
		Scan(&current, &dataRaw)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if err != nil {
		return err
	}

	if params.Status != nil {
		if current == TaskStatusSuccess && *params.Status != TaskStatusSuccess {
			return fmt.Errorf("%w: task %s is already success, status transitions are rejected", ErrValidation, taskID)
		}
		current = *params.Status
	}

	if params.PatchData != nil {
		var data map[string]any
		if err := json.Unmarshal(dataRaw, &data); err != nil {
			return fmt.Errorf("decode task data: %w", err)
		}
		if data == nil {
			data = map[string]any{}
		}
		for k, v := range params.PatchData {
			data[k] = v
		}
		patched, err := json.Marshal(data)
		if err != nil {
			return err
		}
		dataRaw = patched
	}

	_, err = tx.Exec(ctx, `UPDATE tasks SET status = $1, data = $2, updated_at = now() WHERE id = $3`,
		current, dataRaw, taskID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetTaskSpaceDigested marks a task consumed by the Space-Construction
// pipeline, so a future SOPComplete redelivery for the same task no-ops
// (spec §5 idempotency policy).
func (s *TaskStore) SetTaskSpaceDigested(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE tasks SET space_digested = true, updated_at = now() WHERE id = $1`, taskID)
	return err
}

// CountLearningStatus counts non-planning success tasks in sessionID by
// space_digested, backing the get_learning_status HTTP trigger (spec
// §6): {space_digested_count, not_space_digested_count}.
func (s *TaskStore) CountLearningStatus(ctx context.Context, sessionID uuid.UUID) (digested, notDigested int, err error) {
	row := s.pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE space_digested),
		   count(*) FILTER (WHERE NOT space_digested)
		 FROM tasks
		 WHERE session_id = $1 AND is_planning = false AND status = $2`,
		sessionID, TaskStatusSuccess)
	if err := row.Scan(&digested, &notDigested); err != nil {
		return 0, 0, err
	}
	return digested, notDigested, nil
}

// InsertTask creates a task at afterOrder+1, shifting successors by +1
// using the two-phase negative-then-positive remap so no (session_id,
// task_order) uniqueness violation can occur mid-shift (spec §4.B, §3).
// Locks every task row in the session FOR UPDATE first.
func (s *TaskStore) InsertTask(ctx context.Context, sessionID uuid.UUID, afterOrder int, data TaskData, status TaskStatus) (*Task, error) {
	if afterOrder < 0 {
		return nil, fmt.Errorf("%w: after_order must be >= 0, got %d", ErrBadRequest, afterOrder)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM tasks WHERE session_id = $1 FOR UPDATE`, sessionID); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET task_order = -task_order WHERE session_id = $1 AND task_order > $2`,
		sessionID, afterOrder); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET task_order = -task_order + 1 WHERE session_id = $1 AND task_order < 0`,
		sessionID); err != nil {
		return nil, err
	}

	dataRaw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO tasks (session_id, task_order, status, data)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+taskColumns,
		sessionID, afterOrder+1, status, dataRaw)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTask removes a task row.
func (s *TaskStore) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	return err
}

// AppendMessagesToTask re-targets the given messages' task_id and records
// their ids in the task's raw_message_ids, so the SOP Abstraction Agent can
// later load the task's original message history (spec §4.G/§4.H).
func (s *TaskStore) AppendMessagesToTask(ctx context.Context, messageIDs []uuid.UUID, taskID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE messages SET task_id = $1 WHERE id = ANY($2)`, taskID, messageIDs); err != nil {
		return err
	}
	if err := appendRawMessageIDs(ctx, tx, taskID, messageIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// appendRawMessageIDs concatenates messageIDs onto a task's raw_message_ids
// JSONB array via the `||` operator, matching AppendSOPThinking's
// merge-not-replace idiom.
func appendRawMessageIDs(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, messageIDs []uuid.UUID) error {
	idsRaw, err := json.Marshal(messageIDs)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE tasks SET raw_message_ids = raw_message_ids || $1::jsonb, updated_at = now() WHERE id = $2`,
		idsRaw, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return nil
}

// AppendProgressToTask appends one progress line (and optional
// preference) to a task's data, rejecting tasks already in success
// (spec §4.G: "fails if task is success").
func (s *TaskStore) AppendProgressToTask(ctx context.Context, taskID uuid.UUID, progress string, userPreference *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status TaskStatus
	var dataRaw []byte
	err = tx.QueryRow(ctx, `SELECT status, data FROM tasks WHERE id = $1 FOR UPDATE`, taskID).Scan(&status, &dataRaw)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if err != nil {
		return err
	}
	if status == TaskStatusSuccess {
		return fmt.Errorf("%w: task %s is already success", ErrValidation, taskID)
	}

	var data TaskData
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return fmt.Errorf("decode task data: %w", err)
	}
	data.Progresses = append(data.Progresses, progress)
	if userPreference != nil {
		data.UserPreferences = append(data.UserPreferences, *userPreference)
	}
	patched, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE tasks SET data = $1, updated_at = now() WHERE id = $2`, patched, taskID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendMessagesToPlanningSection ensures a planning task exists (creating
// one with order=0, is_planning=true if absent), then links the given
// messages to it. Mirrors append_messages_to_planning_section.
func (s *TaskStore) AppendMessagesToPlanningSection(ctx context.Context, sessionID uuid.UUID, messageIDs []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var planningID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM tasks WHERE session_id = $1 AND is_planning = true`, sessionID).Scan(&planningID)
	if err == pgx.ErrNoRows {
		data := TaskData{TaskDescription: "collecting planning&requirements"}
		dataRaw, merr := json.Marshal(data)
		if merr != nil {
			return merr
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO tasks (session_id, task_order, status, is_planning, data)
			 VALUES ($1, 0, 'pending', true, $2) RETURNING id`,
			sessionID, dataRaw).Scan(&planningID); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE messages SET task_id = $1 WHERE id = ANY($2)`, planningID, messageIDs); err != nil {
		return err
	}
	if err := appendRawMessageIDs(ctx, tx, planningID, messageIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendSOPThinking persists SOP-abstraction rationale via a JSONB merge
// rather than read-modify-write, matching append_sop_thinking_to_task's
// `data || {...}` operator call (see SPEC_FULL.md §3).
func (s *TaskStore) AppendSOPThinking(ctx context.Context, taskID uuid.UUID, thinking string) error {
	patch, err := json.Marshal(map[string]string{"sop_thinking": thinking})
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET data = data || $1::jsonb, updated_at = now() WHERE id = $2`,
		patch, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return nil
}
