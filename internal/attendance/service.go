package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/idgen"
)

// WorkStopper は勤怠が閉じたときに実行中の作業を退勤時刻で止める。
// worksession が実装し、起動時に SetWorkStopper で差し込む。
type WorkStopper interface {
	StopIfOffDutyTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) error
}

type Service struct {
	db      *sql.DB
	cal     dutycal.Calendar
	policy  Policy
	norm    Normalizer
	id      idgen.IDGen
	stopper WorkStopper
}

func NewService(conn *sql.DB, cal dutycal.Calendar, policy Policy, ids idgen.IDGen) *Service {
	return &Service{
		db:     conn,
		cal:    cal,
		policy: policy,
		norm:   NewNormalizer(policy),
		id:     ids,
	}
}

// SetWorkStopper は NewService の後、リクエストを受け付ける前に一度だけ呼ぶ。
func (s *Service) SetWorkStopper(w WorkStopper) { s.stopper = w }

func (s *Service) Calendar() dutycal.Calendar { return s.cal }
func (s *Service) Policy() Policy             { return s.policy }

func (s *Service) toView(r Record, now time.Time) View {
	return View{
		ID:               r.ID,
		UserID:           r.UserID,
		DutyDate:         r.DutyDate,
		State:            r.State(),
		InTime:           r.InTime,
		OutTime:          r.OutTime,
		EffectiveOutTime: s.policy.ResolveOutTime(r, now),
		AutoOff:          r.AutoOff,
		DutySeconds:      s.policy.DutySeconds(r, now),
	}
}

// POST /attendance/clock-in
// 既に今日の記録（または日付をまたいで開いている記録）があればそのまま返す。
func (s *Service) ClockIn(ctx context.Context, userID string, now time.Time) (View, bool, error) {
	var (
		rec     Record
		created bool
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		cur, err := s.currentTx(ctx, st, userID, now)
		if err != nil {
			return err
		}
		if cur != nil {
			rec = *cur
			return nil
		}
		rec, created, err = s.insertToday(ctx, st, userID, now)
		return err
	})
	if err != nil {
		return View{}, false, err
	}
	if created {
		log.Printf("[INFO] clock-in user=%s date=%s", userID, rec.DutyDate)
	}
	return s.toView(rec, now), created, nil
}

// POST /attendance/clock-out
func (s *Service) ClockOut(ctx context.Context, userID string, now time.Time) (View, error) {
	var rec Record
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		cur, err := s.currentTx(ctx, st, userID, now)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrNotFound.WithMessage("no attendance for %s", s.cal.DutyDateOf(now))
		}
		if cur.State() != StateOpen {
			return ErrNotOpen.WithMessage("attendance %s is %s", cur.DutyDate, cur.State())
		}

		out := now
		if out.Before(cur.InTime) {
			out = cur.InTime
		}
		closed, err := st.Close(ctx, cur.ID, out, false)
		if err != nil {
			return fmt.Errorf("clock out: %w", err)
		}
		if !closed {
			return ErrNotOpen
		}
		at := db.Stamp(out)
		cur.OutTime = &at
		rec = *cur
		return s.stopWorkTx(ctx, tx, userID, now)
	})
	if err != nil {
		return View{}, err
	}
	log.Printf("[INFO] clock-out user=%s date=%s", userID, rec.DutyDate)
	return s.toView(rec, now), nil
}

// GET /attendance/status
// 読み取りだが自動退勤の書き込みが起こりうるので通常の Tx で回す。
func (s *Service) Status(ctx context.Context, userID string, now time.Time) (*View, error) {
	var cur *Record
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var err error
		cur, err = s.currentTx(ctx, NewStore(tx), userID, now)
		return err
	})
	if err != nil || cur == nil {
		return nil, err
	}
	v := s.toView(*cur, now)
	return &v, nil
}

// CurrentTx normalizes userID's records and returns the one that governs
// "now": the latest still-open record, else today's, else nil.
func (s *Service) CurrentTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) (*View, error) {
	cur, err := s.currentTx(ctx, NewStore(tx), userID, now)
	if err != nil || cur == nil {
		return nil, err
	}
	v := s.toView(*cur, now)
	return &v, nil
}

// WorkLimitTx normalizes userID's records and returns the latest instant up to
// which work started at `since` may be counted. If the record in effect at
// since is closed (clock-out or auto-off) the limit is min(now, outTime) and
// closed is true. Without a governing record the limit is now.
func (s *Service) WorkLimitTx(ctx context.Context, tx db.DBTX, userID string, since, now time.Time) (time.Time, bool, error) {
	st := NewStore(tx)
	if _, err := s.norm.NormalizeUser(ctx, st, userID, now); err != nil {
		return now, false, err
	}
	rec, err := st.StartedAtOrBefore(ctx, userID, since)
	if err != nil {
		return now, false, fmt.Errorf("attendance at %s: %w", since.UTC().Format(time.RFC3339), err)
	}
	if rec == nil || rec.OutTime == nil {
		return now, false, nil
	}
	if rec.OutTime.Before(now) {
		return *rec.OutTime, true, nil
	}
	return now, true, nil
}

func (s *Service) stopWorkTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) error {
	if s.stopper == nil {
		return nil
	}
	if err := s.stopper.StopIfOffDutyTx(ctx, tx, userID, now); err != nil {
		return fmt.Errorf("stop work for %s: %w", userID, err)
	}
	return nil
}

func (s *Service) currentTx(ctx context.Context, st *Store, userID string, now time.Time) (*Record, error) {
	if _, err := s.norm.NormalizeUser(ctx, st, userID, now); err != nil {
		return nil, err
	}
	open, err := st.LatestOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("latest open attendance: %w", err)
	}
	if open != nil {
		return open, nil
	}
	today, err := st.GetByDate(ctx, userID, s.cal.DutyDateOf(now))
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return today, nil
}

// EnsureOpenTx は作業開始時のフック。その日最初の作業で記録を作る。
// 今日の記録が閉じていれば ATTENDANCE_CLOSED。
func (s *Service) EnsureOpenTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) (Record, error) {
	st := NewStore(tx)
	cur, err := s.currentTx(ctx, st, userID, now)
	if err != nil {
		return Record{}, err
	}
	if cur == nil {
		rec, created, err := s.insertToday(ctx, st, userID, now)
		if err != nil {
			return Record{}, err
		}
		if created {
			log.Printf("[INFO] attendance opened by work action user=%s date=%s", userID, rec.DutyDate)
		}
		if rec.State() != StateOpen {
			return Record{}, ErrClosedForToday
		}
		return rec, nil
	}
	if cur.State() != StateOpen {
		return Record{}, ErrClosedForToday.WithMessage("attendance for %s is %s", cur.DutyDate, cur.State())
	}
	return *cur, nil
}

// insertToday は UNIQUE(user_id, duty_date) に任せる。競合したら相手の行を返す。
func (s *Service) insertToday(ctx context.Context, st *Store, userID string, now time.Time) (Record, bool, error) {
	id, err := s.id.New()
	if err != nil {
		return Record{}, false, err
	}
	rec := Record{
		ID:       id,
		UserID:   userID,
		DutyDate: s.cal.DutyDateOf(now),
		InTime:   db.Stamp(now),
	}
	err = st.Insert(ctx, rec)
	if err == nil {
		return rec, true, nil
	}
	if !db.IsDuplicateKey(err) {
		return Record{}, false, fmt.Errorf("insert attendance: %w", err)
	}
	existing, err := st.GetByDate(ctx, userID, rec.DutyDate)
	if err != nil {
		return Record{}, false, fmt.Errorf("get attendance: %w", err)
	}
	if existing == nil {
		return Record{}, false, apperr.Internal("attendance conflicted but not found")
	}
	return *existing, false, nil
}

// SweepAll normalizes every open record in the store. 1 件ごとに Tx を切る。
func (s *Service) SweepAll(ctx context.Context, now time.Time) (int, error) {
	var candidates []Record
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		candidates, err = NewStore(tx).ListOpenStartedBefore(ctx, now.Add(-s.policy.MaxDuty))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list candidates: %w", err)
	}

	closed := 0
	for _, r := range candidates {
		err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
			nr, err := s.norm.Normalize(ctx, NewStore(tx), r, now)
			if err != nil {
				return err
			}
			if !nr.AutoOff || r.State() != StateOpen {
				return nil
			}
			if err := s.stopWorkTx(ctx, tx, r.UserID, now); err != nil {
				return err
			}
			closed++
			return nil
		})
		if err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// GET /users/:userId/attendance
func (s *Service) List(ctx context.Context, viewer auth.Identity, userID string, q ListQuery, now time.Time) ([]View, int64, error) {
	if !viewer.CanView(userID) {
		return nil, 0, apperr.ErrForbidden
	}
	q.clamp()
	if q.From != nil && q.To != nil && dutycal.Compare(*q.To, *q.From) < 0 {
		return nil, 0, apperr.Invalid("INVALID_RANGE", "to must be >= from")
	}

	var (
		rows  []Record
		total int64
	)
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		rows, total, err = NewStore(tx).List(ctx, userID, q)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	out := make([]View, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, s.toView(rows[i], now))
	}
	return out, total, nil
}

// ===== Duty windows =====

// ResolveTx は (user, dutyDate) の勤務区間を Start 昇順で返す。記録が無ければ空。
func (s *Service) ResolveTx(ctx context.Context, tx db.DBTX, userID string, date dutycal.DateKey, now time.Time) ([]Window, error) {
	st := NewStore(tx)
	rec, err := st.GetByDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	ovs, err := st.ListOverrides(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return mergeWindows(attendanceWindow(rec, s.policy, now), overrideWindows(ovs)), nil
}

// GET /users/:userId/duty-windows
func (s *Service) Resolve(ctx context.Context, viewer auth.Identity, userID string, date dutycal.DateKey, now time.Time) ([]Window, error) {
	if !viewer.CanView(userID) {
		return nil, apperr.ErrForbidden
	}
	var out []Window
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		out, err = s.ResolveTx(ctx, tx, userID, date, now)
		return err
	})
	return out, err
}

// POST /users/:userId/duty-overrides
func (s *Service) CreateOverride(ctx context.Context, actor auth.Identity, userID string, in CreateOverrideRequest, now time.Time) (OverrideView, error) {
	if !actor.Role.CanManage() {
		return OverrideView{}, apperr.ErrForbidden
	}
	date, err := dutycal.ParseDateKey(in.DutyDate)
	if err != nil {
		return OverrideView{}, err
	}
	if !in.EndAt.After(in.StartAt) {
		return OverrideView{}, ErrInvalidOverride.WithMessage("end_at must be after start_at")
	}
	if got := s.cal.DutyDateOf(in.StartAt); got != date {
		return OverrideView{}, ErrInvalidOverride.WithMessage("start_at falls on %s, not %s", got, date)
	}

	id, err := s.id.New()
	if err != nil {
		return OverrideView{}, err
	}
	o := Override{
		ID:        id,
		UserID:    userID,
		DutyDate:  date,
		StartAt:   db.Stamp(in.StartAt),
		EndAt:     db.Stamp(in.EndAt),
		Note:      in.Note,
		CreatedBy: actor.UserID,
		CreatedAt: db.Stamp(now),
	}
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return NewStore(tx).InsertOverride(ctx, o)
	})
	if err != nil {
		return OverrideView{}, fmt.Errorf("insert override: %w", err)
	}
	log.Printf("[INFO] duty override user=%s date=%s by=%s", userID, date, actor.UserID)
	return o.toDTO(), nil
}
