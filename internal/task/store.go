package task

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ATLAS-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(d db.DBTX) *Store { return &Store{db: d} }

const taskCols = `id, assignee_id, title, status, total_seconds, last_resumed_at`

func scanTask(sc interface{ Scan(...any) error }) (Task, error) {
	var (
		t       Task
		status  string
		total   sql.NullInt64
		resumed sql.NullTime
	)
	if err := sc.Scan(&t.ID, &t.AssigneeID, &t.Title, &status, &total, &resumed); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	if total.Valid {
		t.TotalSeconds = &total.Int64
	}
	t.LastResumedAt = db.TimePtr(resumed)
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListByAssignee(ctx context.Context, assigneeID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+taskCols+` FROM tasks
	WHERE assignee_id = ?
	ORDER BY id ASC`, assigneeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) InsertTask(ctx context.Context, t Task) error {
	var total any
	if t.TotalSeconds != nil {
		total = *t.TotalSeconds
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO tasks (id, assignee_id, title, status, total_seconds, last_resumed_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.AssigneeID, t.Title, string(t.Status), total, db.NullStamp(t.LastResumedAt))
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, id string, st Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, string(st), id)
	return err
}

// SetResumed は計測の再開点を書く。nil は一時停止中。
func (s *Store) SetResumed(ctx context.Context, id string, at *time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET last_resumed_at = ? WHERE id = ?`, db.NullStamp(at), id)
	return err
}

// AddSeconds は累計に加算して計測を止める。NULL の累計は 0 から始める。
func (s *Store) AddSeconds(ctx context.Context, id string, secs int64) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE tasks
	SET total_seconds = COALESCE(total_seconds, 0) + ?, last_resumed_at = NULL
	WHERE id = ?`, secs, id)
	return err
}

func (s *Store) SeedTotal(ctx context.Context, id string, secs int64) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE tasks SET total_seconds = ?
	WHERE id = ? AND total_seconds IS NULL`, secs, id)
	return err
}

// ===== task_work_sessions =====

const sessionCols = `id, task_id, user_id, started_at, ended_at`

func scanSession(sc interface{ Scan(...any) error }) (Session, error) {
	var (
		s     Session
		ended sql.NullTime
	)
	if err := sc.Scan(&s.ID, &s.TaskID, &s.UserID, &s.StartedAt, &ended); err != nil {
		return Session{}, err
	}
	s.StartedAt = s.StartedAt.UTC()
	s.EndedAt = db.TimePtr(ended)
	return s, nil
}

func (s *Store) querySessions(ctx context.Context, q string, args ...any) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// RunningSession: 1 ユーザにつき高々 1 件（running_user_id UNIQUE）
func (s *Store) RunningSession(ctx context.Context, userID string) (*Session, error) {
	ss, err := scanSession(s.db.QueryRowContext(ctx, `
	SELECT `+sessionCols+` FROM task_work_sessions
	WHERE user_id = ? AND ended_at IS NULL
	ORDER BY started_at DESC
	LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

func (s *Store) RunningSessionForTask(ctx context.Context, taskID string) (*Session, error) {
	ss, err := scanSession(s.db.QueryRowContext(ctx, `
	SELECT `+sessionCols+` FROM task_work_sessions
	WHERE task_id = ? AND ended_at IS NULL
	LIMIT 1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

// InsertSession は running_user_id を埋めて入れる。二重起動は UNIQUE 違反になる。
func (s *Store) InsertSession(ctx context.Context, ss Session) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO task_work_sessions (id, task_id, user_id, started_at, ended_at, running_user_id)
	VALUES (?, ?, ?, ?, NULL, ?)`,
		ss.ID, ss.TaskID, ss.UserID, db.Stamp(ss.StartedAt), ss.UserID)
	return err
}

func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE task_work_sessions SET ended_at = ?, running_user_id = NULL
	WHERE id = ? AND ended_at IS NULL`, db.Stamp(endedAt), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ClosedSessions は累計カウンタが無い古いタスクの集計用。
func (s *Store) ClosedSessions(ctx context.Context, taskID string) ([]Session, error) {
	return s.querySessions(ctx, `
	SELECT `+sessionCols+` FROM task_work_sessions
	WHERE task_id = ? AND ended_at IS NOT NULL
	ORDER BY started_at ASC`, taskID)
}

// SessionsOverlapping は [from, to) と交わるセッション。実行中は終端なしとして扱う。
func (s *Store) SessionsOverlapping(ctx context.Context, userID string, from, to time.Time) ([]Session, error) {
	return s.querySessions(ctx, `
	SELECT `+sessionCols+` FROM task_work_sessions
	WHERE user_id = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?)
	ORDER BY started_at ASC, id ASC`, userID, db.Stamp(to), db.Stamp(from))
}
