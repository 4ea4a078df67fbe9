package manuallog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/idgen"
)

const DefaultLookbackDays = 2

type Service struct {
	db       *sql.DB
	cal      dutycal.Calendar
	lookback int
	id       idgen.IDGen
}

func NewService(conn *sql.DB, cal dutycal.Calendar, lookbackDays int, ids idgen.IDGen) *Service {
	return &Service{db: conn, cal: cal, lookback: lookbackDays, id: ids}
}

// checkDate: 今日と直前 lookback 日分だけ編集できる。未来日は不可。
func (s *Service) checkDate(date dutycal.DateKey, now time.Time) error {
	if !s.cal.WithinLookback(date, now, s.lookback) {
		today := s.cal.DutyDateOf(now)
		return ErrDateNotAllowed.WithMessage("date %s must be between %s and %s", date, today.Shift(-s.lookback), today)
	}
	return nil
}

// build は入力を検証して保存用の Log を組み立てる（ID/作成時刻は呼び出し側）。
func (s *Service) build(userID string, in Input, now time.Time) (Log, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return Log{}, apperr.Invalid("INVALID_DESCRIPTION", "description is required")
	}
	date, err := dutycal.ParseDateKey(in.Date)
	if err != nil {
		return Log{}, err
	}
	if err := s.checkDate(date, now); err != nil {
		return Log{}, err
	}
	cats, err := NormalizeCategories(in.Categories)
	if err != nil {
		return Log{}, err
	}

	start := db.Stamp(in.StartAt)
	if lo, hi := s.cal.DayBounds(date); start.Before(lo) || !start.Before(hi) {
		return Log{}, ErrInvalidInterval.WithMessage("start_at falls on %s, not %s", s.cal.DutyDateOf(start), date)
	}
	if start.After(now) {
		return Log{}, ErrInvalidInterval.WithMessage("start_at is in the future")
	}

	l := Log{
		UserID:      userID,
		Description: desc,
		Date:        date,
		Categories:  cats,
		StartAt:     start,
		UpdatedAt:   db.Stamp(now),
	}
	if in.EndAt != nil {
		end := db.Stamp(*in.EndAt)
		if !end.After(start) {
			return Log{}, ErrInvalidInterval.WithMessage("end_at must be after start_at")
		}
		if end.After(now) {
			return Log{}, ErrInvalidInterval.WithMessage("end_at is in the future")
		}
		l.EndAt = &end
		l.DurationSeconds = int64(end.Sub(start) / time.Second)
	}
	return l, nil
}

// checkInvariants: 実行中は 1 本まで、区間は重ならない。excludeID は編集中の自分。
func checkInvariants(ctx context.Context, st *Store, l Log, excludeID string, now time.Time) error {
	if l.Running() {
		open, err := FindOpenLog(ctx, st, l.UserID, excludeID)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrAlreadyRunning.WithMessage("manual log %s is still running", open.ID)
		}
	}
	c, err := FindConflict(ctx, st, l.UserID, l.StartAt, l.EndAt, excludeID, now)
	if err != nil {
		return err
	}
	if c != nil {
		return ErrOverlapping.WithMessage("overlaps manual log %s starting %s", c.ID, c.StartAt.Format(time.RFC3339))
	}
	return nil
}

// 同一ユーザの書き込みを直列化してから検査と書き込みを行う。
func (s *Service) inUserTx(ctx context.Context, userID string, now time.Time, fn func(ctx context.Context, st *Store) error) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := db.LockUser(ctx, tx, userID, now); err != nil {
			return err
		}
		return fn(ctx, NewStore(tx))
	})
}

func translateDup(err error) error {
	if db.IsDuplicateKey(err) {
		return ErrAlreadyRunning
	}
	return err
}

// POST /manual-logs
func (s *Service) Create(ctx context.Context, userID string, in Input, now time.Time) (View, error) {
	l, err := s.build(userID, in, now)
	if err != nil {
		return View{}, err
	}
	if l.ID, err = s.id.New(); err != nil {
		return View{}, err
	}
	l.CreatedAt = l.UpdatedAt

	err = s.inUserTx(ctx, userID, now, func(ctx context.Context, st *Store) error {
		if err := checkInvariants(ctx, st, l, "", now); err != nil {
			return err
		}
		if err := st.Insert(ctx, l); err != nil {
			return fmt.Errorf("insert manual log: %w", translateDup(err))
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	log.Printf("[INFO] manual log created user=%s id=%s date=%s running=%t", userID, l.ID, l.Date, l.Running())
	return l.ToView(), nil
}

// loadOwned は本人のログを返す。dateRule なら保存済みの日付も編集可能範囲か確認する。
func (s *Service) loadOwned(ctx context.Context, st *Store, userID, id string, dateRule bool, now time.Time) (*Log, error) {
	cur, err := st.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get manual log: %w", err)
	}
	if cur == nil {
		return nil, ErrNotFound
	}
	if cur.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	if dateRule {
		if err := s.checkDate(cur.Date, now); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// PUT /manual-logs/:id
func (s *Service) Update(ctx context.Context, userID, id string, in Input, now time.Time) (View, error) {
	next, err := s.build(userID, in, now)
	if err != nil {
		return View{}, err
	}
	err = s.inUserTx(ctx, userID, now, func(ctx context.Context, st *Store) error {
		cur, err := s.loadOwned(ctx, st, userID, id, true, now)
		if err != nil {
			return err
		}
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		if err := checkInvariants(ctx, st, next, cur.ID, now); err != nil {
			return err
		}
		if err := st.Update(ctx, next); err != nil {
			return fmt.Errorf("update manual log: %w", translateDup(err))
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return next.ToView(), nil
}

// POST /manual-logs/:id/stop
func (s *Service) Stop(ctx context.Context, userID, id string, now time.Time) (View, error) {
	var out Log
	err := s.inUserTx(ctx, userID, now, func(ctx context.Context, st *Store) error {
		// 止め忘れた古いログも止められるよう日付制限はかけない
		cur, err := s.loadOwned(ctx, st, userID, id, false, now)
		if err != nil {
			return err
		}
		if !cur.Running() {
			return ErrNotRunning
		}

		end := db.Stamp(now)
		if !end.After(cur.StartAt) {
			return ErrInvalidInterval.WithMessage("manual log cannot end before it starts")
		}
		cur.EndAt = &end
		cur.DurationSeconds = int64(end.Sub(cur.StartAt) / time.Second)
		cur.UpdatedAt = end
		if err := checkInvariants(ctx, st, *cur, cur.ID, now); err != nil {
			return err
		}
		if err := st.Update(ctx, *cur); err != nil {
			return fmt.Errorf("stop manual log: %w", err)
		}
		out = *cur
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out.ToView(), nil
}

// DELETE /manual-logs/:id
func (s *Service) Delete(ctx context.Context, userID, id string, now time.Time) error {
	return s.inUserTx(ctx, userID, now, func(ctx context.Context, st *Store) error {
		cur, err := s.loadOwned(ctx, st, userID, id, true, now)
		if err != nil {
			return err
		}
		if err := st.Delete(ctx, cur.ID); err != nil {
			return fmt.Errorf("delete manual log: %w", err)
		}
		return nil
	})
}

// GET /manual-logs?date=&user_id=
func (s *Service) ListByDate(ctx context.Context, viewer auth.Identity, userID string, date dutycal.DateKey) ([]View, error) {
	if !viewer.CanView(userID) {
		return nil, apperr.ErrForbidden
	}
	var logs []Log
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		logs, err = ListByDateTx(ctx, tx, userID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.ToView())
	}
	return out, nil
}

// ListByDateTx is the timeline's read of the manual log layer.
func ListByDateTx(ctx context.Context, tx db.DBTX, userID string, date dutycal.DateKey) ([]Log, error) {
	logs, err := NewStore(tx).ListByDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list manual logs: %w", err)
	}
	return logs, nil
}
