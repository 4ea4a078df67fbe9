package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/db"
)

// Store は *sql.DB でも *sql.Tx でも動く。Service は Tx ごとに NewStore(tx) する。
type Store struct{ db db.DBTX }

func NewStore(d db.DBTX) *Store { return &Store{db: d} }

const recordCols = `id, user_id, duty_date, in_time, out_time, auto_off`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r    Record
		date string
		out  sql.NullTime
	)
	if err := sc.Scan(&r.ID, &r.UserID, &date, &r.InTime, &out, &r.AutoOff); err != nil {
		return Record{}, err
	}
	r.DutyDate = dutycal.DateKey(date)
	r.InTime = r.InTime.UTC()
	r.OutTime = db.TimePtr(out)
	return r, nil
}

func (s *Store) queryOne(ctx context.Context, q string, args ...any) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) queryMany(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	return s.queryOne(ctx, `SELECT `+recordCols+` FROM attendances WHERE id = ?`, id)
}

// GetByDate: (user, duty_date) は UNIQUE
func (s *Store) GetByDate(ctx context.Context, userID string, date dutycal.DateKey) (*Record, error) {
	return s.queryOne(ctx, `
	SELECT `+recordCols+` FROM attendances
	WHERE user_id = ? AND duty_date = ?`, userID, string(date))
}

// LatestOpen: 日付をまたいで開いたままの行も拾う
func (s *Store) LatestOpen(ctx context.Context, userID string) (*Record, error) {
	return s.queryOne(ctx, `
	SELECT `+recordCols+` FROM attendances
	WHERE user_id = ? AND out_time IS NULL
	ORDER BY in_time DESC
	LIMIT 1`, userID)
}

// StartedAtOrBefore は at の時点で効いていた記録（inTime <= at の最新）。
func (s *Store) StartedAtOrBefore(ctx context.Context, userID string, at time.Time) (*Record, error) {
	return s.queryOne(ctx, `
	SELECT `+recordCols+` FROM attendances
	WHERE user_id = ? AND in_time <= ?
	ORDER BY in_time DESC
	LIMIT 1`, userID, db.Stamp(at))
}

func (s *Store) ListOpenByUser(ctx context.Context, userID string) ([]Record, error) {
	return s.queryMany(ctx, `
	SELECT `+recordCols+` FROM attendances
	WHERE user_id = ? AND out_time IS NULL
	ORDER BY in_time ASC`, userID)
}

// ListOpenStartedBefore は全ユーザ分。autooff の一括処理用。
func (s *Store) ListOpenStartedBefore(ctx context.Context, cutoff time.Time) ([]Record, error) {
	return s.queryMany(ctx, `
	SELECT `+recordCols+` FROM attendances
	WHERE out_time IS NULL AND in_time < ?
	ORDER BY in_time ASC`, db.Stamp(cutoff))
}

func (s *Store) Insert(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO attendances (id, user_id, duty_date, in_time, out_time, auto_off)
	VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, string(r.DutyDate), db.Stamp(r.InTime), db.NullStamp(r.OutTime), r.AutoOff)
	return err
}

// Close は開いている行だけを閉じる。false = 既に誰かが閉じていた。
func (s *Store) Close(ctx context.Context, id string, out time.Time, autoOff bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE attendances SET out_time = ?, auto_off = ?
	WHERE id = ? AND out_time IS NULL`, db.Stamp(out), autoOff, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List: 条件に応じて動的WHERE + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, userID string, q ListQuery) ([]Record, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres = []string{"user_id = ?"}
	)
	args = append(args, userID)

	if q.From != nil {
		wheres = append(wheres, "duty_date >= ?")
		args = append(args, string(*q.From))
	}
	if q.To != nil {
		wheres = append(wheres, "duty_date <= ?")
		args = append(args, string(*q.To))
	}
	where := " WHERE " + strings.Join(wheres, " AND ")

	buf.WriteString(`SELECT ` + recordCols + ` FROM attendances`)
	buf.WriteString(where)
	buf.WriteString(" ORDER BY duty_date DESC, in_time DESC")
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset))

	out, err := s.queryMany(ctx, buf.String(), args...)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendances"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ===== duty_overrides =====

func (s *Store) InsertOverride(ctx context.Context, o Override) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO duty_overrides (id, user_id, duty_date, start_at, end_at, note, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, string(o.DutyDate), db.Stamp(o.StartAt), db.Stamp(o.EndAt),
		noteOrNil(o.Note), o.CreatedBy, db.Stamp(o.CreatedAt))
	return err
}

func (s *Store) ListOverrides(ctx context.Context, userID string, date dutycal.DateKey) ([]Override, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, user_id, duty_date, start_at, end_at, note, created_by, created_at
	FROM duty_overrides
	WHERE user_id = ? AND duty_date = ?
	ORDER BY start_at ASC, id ASC`, userID, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var (
			o    Override
			date string
			note sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &date, &o.StartAt, &o.EndAt, &note, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.DutyDate = dutycal.DateKey(date)
		o.StartAt, o.EndAt, o.CreatedAt = o.StartAt.UTC(), o.EndAt.UTC(), o.CreatedAt.UTC()
		if note.Valid {
			o.Note = &note.String
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ===== helpers =====

func noteOrNil(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
