package breaks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/idgen"
	"ATLAS-backend/internal/task"
)

type Service struct {
	db   *sql.DB
	duty task.DutyLimiter
	id   idgen.IDGen
}

func NewService(conn *sql.DB, duty task.DutyLimiter, ids idgen.IDGen) *Service {
	return &Service{db: conn, duty: duty, id: ids}
}

// limitTx は休憩操作の時刻を勤怠の退勤時刻で打ち切る。
// 実行中セッションがあればその開始時点の勤怠、無ければ since 時点の勤怠で判定する。
func (s *Service) limitTx(ctx context.Context, tx db.DBTX, userID string, running *task.Session, since, now time.Time) (time.Time, bool, error) {
	if running != nil {
		since = running.StartedAt
	}
	return s.duty.WorkLimitTx(ctx, tx, userID, since, now)
}

// POST /tasks/:id/breaks
// 検査と INSERT は同じ Tx。すり抜けても open_task_id の UNIQUE で止まる。
func (s *Service) StartBreak(ctx context.Context, userID, taskID string, in StartRequest, now time.Time) (View, error) {
	reasons, err := NormalizeReasons(in.Reasons)
	if err != nil {
		return View{}, err
	}
	id, err := s.id.New()
	if err != nil {
		return View{}, err
	}

	b := Break{
		ID:        id,
		TaskID:    taskID,
		UserID:    userID,
		Reasons:   reasons,
		Note:      in.Note,
		StartedAt: db.Stamp(now),
	}
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		ts := task.NewStore(tx)
		t, err := task.GetOwnedTx(ctx, ts, userID, taskID)
		if err != nil {
			return err
		}
		if !t.Status.IsActive() {
			return ErrInvalidTaskStatus.WithMessage("task is %s", t.Status)
		}

		running, err := ts.RunningSessionForTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("running session: %w", err)
		}
		_, closed, err := s.limitTx(ctx, tx, userID, running, now, now)
		if err != nil {
			return err
		}
		if closed {
			return attendance.ErrClosedForToday.WithMessage("attendance is closed; cannot start a break")
		}

		st := NewStore(tx)
		open, err := st.OpenForTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("open break: %w", err)
		}
		if open != nil {
			return ErrBreakAlreadyOpen
		}
		if err := st.Insert(ctx, b); err != nil {
			if db.IsDuplicateKey(err) {
				return ErrBreakAlreadyOpen
			}
			return fmt.Errorf("insert break: %w", err)
		}

		// 休憩中は計測を止める
		return task.Flush(ctx, ts, t, now)
	})
	if err != nil {
		return View{}, err
	}
	log.Printf("[INFO] break start user=%s task=%s reasons=%s", userID, taskID, joinReasons(reasons))
	return b.ToView(), nil
}

// POST /tasks/:id/breaks/end
func (s *Service) EndBreak(ctx context.Context, userID, taskID string, now time.Time) (View, error) {
	var out Break
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		ts := task.NewStore(tx)
		t, err := task.GetOwnedTx(ctx, ts, userID, taskID)
		if err != nil {
			return err
		}
		open, err := NewStore(tx).OpenForTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("open break: %w", err)
		}
		if open == nil {
			return ErrNoActiveBreak
		}
		running, err := ts.RunningSessionForTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("running session: %w", err)
		}
		end, closed, err := s.limitTx(ctx, tx, userID, running, open.StartedAt, now)
		if err != nil {
			return err
		}

		b, err := EndOpenTx(ctx, tx, taskID, end)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNoActiveBreak
		}
		out = *b

		// 実行中のセッションがあれば休憩終了時刻から再開。勤怠が閉じていれば止めたまま
		if running == nil || closed {
			return nil
		}
		return task.Resume(ctx, ts, t, *b.EndedAt)
	})
	if err != nil {
		return View{}, err
	}
	log.Printf("[INFO] break end user=%s task=%s seconds=%d", userID, taskID, *out.DurationSeconds)
	return out.ToView(), nil
}

// EndOpenTx closes the task's open break at now, if any. nil = none was open.
// now が開始より前なら開始時刻で閉じる（endedAt >= startedAt）。
func EndOpenTx(ctx context.Context, tx db.DBTX, taskID string, now time.Time) (*Break, error) {
	st := NewStore(tx)
	b, err := st.OpenForTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("open break: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	if now.Before(b.StartedAt) {
		now = b.StartedAt
	}
	secs := DurationBetween(b.StartedAt, now)
	closed, err := st.Close(ctx, b.ID, now, secs)
	if err != nil {
		return nil, fmt.Errorf("close break: %w", err)
	}
	if !closed {
		return nil, nil
	}
	end := db.Stamp(now)
	b.EndedAt = &end
	b.DurationSeconds = &secs
	return b, nil
}

// OpenForTaskTx は進行中トラッカー用。
func OpenForTaskTx(ctx context.Context, tx db.DBTX, taskID string) (*Break, error) {
	return NewStore(tx).OpenForTask(ctx, taskID)
}
