package manuallog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(d db.DBTX) *Store { return &Store{db: d} }

const logCols = `id, user_id, description, log_date, categories, start_at, end_at, duration_seconds, created_at, updated_at`

func scanLog(sc interface{ Scan(...any) error }) (Log, error) {
	var (
		l    Log
		date string
		cats string
		end  sql.NullTime
	)
	if err := sc.Scan(&l.ID, &l.UserID, &l.Description, &date, &cats, &l.StartAt, &end, &l.DurationSeconds, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Log{}, err
	}
	l.Date = dutycal.DateKey(date)
	l.Categories = splitCategories(cats)
	l.StartAt = l.StartAt.UTC()
	l.EndAt = db.TimePtr(end)
	l.CreatedAt, l.UpdatedAt = l.CreatedAt.UTC(), l.UpdatedAt.UTC()
	return l, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Log, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id string) (*Log, error) {
	l, err := scanLog(s.db.QueryRowContext(ctx, `SELECT `+logCols+` FROM manual_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListOverlapping: start < to AND (end IS NULL OR end > from)。to == nil は上限なし。
func (s *Store) ListOverlapping(ctx context.Context, userID string, from time.Time, to *time.Time) ([]Log, error) {
	q := `SELECT ` + logCols + ` FROM manual_logs
	WHERE user_id = ? AND (end_at IS NULL OR end_at > ?)`
	args := []any{userID, db.Stamp(from)}
	if to != nil {
		q += ` AND start_at < ?`
		args = append(args, db.Stamp(*to))
	}
	q += ` ORDER BY start_at ASC, id ASC`
	return s.query(ctx, q, args...)
}

func (s *Store) ListRunning(ctx context.Context, userID string) ([]Log, error) {
	return s.query(ctx, `
	SELECT `+logCols+` FROM manual_logs
	WHERE user_id = ? AND end_at IS NULL
	ORDER BY start_at ASC`, userID)
}

func (s *Store) ListByDate(ctx context.Context, userID string, date dutycal.DateKey) ([]Log, error) {
	return s.query(ctx, `
	SELECT `+logCols+` FROM manual_logs
	WHERE user_id = ? AND log_date = ?
	ORDER BY start_at ASC, id ASC`, userID, string(date))
}

// runningMarker: 実行中だけ user_id を入れる。UNIQUE で 2 本目を弾く。
func runningMarker(l Log) any {
	if l.EndAt == nil {
		return l.UserID
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, l Log) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO manual_logs (id, user_id, description, log_date, categories, start_at, end_at, duration_seconds, running_user_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Description, string(l.Date), joinCategories(l.Categories),
		db.Stamp(l.StartAt), db.NullStamp(l.EndAt), l.DurationSeconds, runningMarker(l),
		db.Stamp(l.CreatedAt), db.Stamp(l.UpdatedAt))
	return err
}

func (s *Store) Update(ctx context.Context, l Log) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE manual_logs
	SET description = ?, log_date = ?, categories = ?, start_at = ?, end_at = ?,
	    duration_seconds = ?, running_user_id = ?, updated_at = ?
	WHERE id = ?`,
		l.Description, string(l.Date), joinCategories(l.Categories),
		db.Stamp(l.StartAt), db.NullStamp(l.EndAt), l.DurationSeconds, runningMarker(l),
		db.Stamp(l.UpdatedAt), l.ID)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM manual_logs WHERE id = ?`, id)
	return err
}
