package breaks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ATLAS-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(d db.DBTX) *Store { return &Store{db: d} }

const breakCols = `id, task_id, user_id, reasons, note, started_at, ended_at, duration_seconds`

func scanBreak(sc interface{ Scan(...any) error }) (Break, error) {
	var (
		b       Break
		reasons string
		note    sql.NullString
		ended   sql.NullTime
		secs    sql.NullInt64
	)
	if err := sc.Scan(&b.ID, &b.TaskID, &b.UserID, &reasons, &note, &b.StartedAt, &ended, &secs); err != nil {
		return Break{}, err
	}
	b.Reasons = splitReasons(reasons)
	if note.Valid {
		b.Note = &note.String
	}
	b.StartedAt = b.StartedAt.UTC()
	b.EndedAt = db.TimePtr(ended)
	if secs.Valid {
		b.DurationSeconds = &secs.Int64
	}
	return b, nil
}

// Insert: open_task_id = task_id。同じタスクで 2 本目を開くと UNIQUE 違反。
func (s *Store) Insert(ctx context.Context, b Break) error {
	var note any
	if b.Note != nil && *b.Note != "" {
		note = *b.Note
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO task_breaks (id, task_id, user_id, reasons, note, started_at, ended_at, duration_seconds, open_task_id)
	VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?)`,
		b.ID, b.TaskID, b.UserID, joinReasons(b.Reasons), note, db.Stamp(b.StartedAt), b.TaskID)
	return err
}

func (s *Store) OpenForTask(ctx context.Context, taskID string) (*Break, error) {
	b, err := scanBreak(s.db.QueryRowContext(ctx, `
	SELECT `+breakCols+` FROM task_breaks
	WHERE task_id = ? AND ended_at IS NULL
	LIMIT 1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Close は開いている休憩だけを閉じる。
func (s *Store) Close(ctx context.Context, id string, endedAt time.Time, secs int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE task_breaks SET ended_at = ?, duration_seconds = ?, open_task_id = NULL
	WHERE id = ? AND ended_at IS NULL`, db.Stamp(endedAt), secs, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListOverlapping は [from, to) と交わる休憩。開いているものは終端なし。
func (s *Store) ListOverlapping(ctx context.Context, userID string, from, to time.Time) ([]Break, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+breakCols+` FROM task_breaks
	WHERE user_id = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?)
	ORDER BY started_at ASC, id ASC`, userID, db.Stamp(to), db.Stamp(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
