package worksession

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/idgen"
	"ATLAS-backend/internal/task"
)

var (
	ErrAlreadyRunning = apperr.Conflict("SESSION_ALREADY_RUNNING", "another work session is already running")
	ErrNotRunning     = apperr.NotFound("NO_RUNNING_SESSION", "no running work session")
)

// AttendanceGate は作業開始時に勤怠を開き（閉じていれば拒否する）、
// 停止時刻を勤怠の退勤時刻で打ち切る。
type AttendanceGate interface {
	task.DutyLimiter
	EnsureOpenTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) (attendance.Record, error)
}

type Service struct {
	db  *sql.DB
	att AttendanceGate
	id  idgen.IDGen
}

func NewService(conn *sql.DB, att AttendanceGate, ids idgen.IDGen) *Service {
	return &Service{db: conn, att: att, id: ids}
}

type View struct {
	ID                 string      `json:"id"`
	TaskID             string      `json:"task_id"`
	UserID             string      `json:"user_id"`
	StartedAt          time.Time   `json:"started_at"`
	EndedAt            *time.Time  `json:"ended_at"`
	TaskStatus         task.Status `json:"task_status"`
	AccumulatedSeconds int64       `json:"accumulated_seconds"`
}

func toView(s task.Session, t task.Task, acc int64) View {
	return View{
		ID:                 s.ID,
		TaskID:             s.TaskID,
		UserID:             s.UserID,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		TaskStatus:         t.Status,
		AccumulatedSeconds: acc,
	}
}

// POST /tasks/:id/start
func (s *Service) StartTask(ctx context.Context, userID, taskID string, now time.Time) (View, error) {
	id, err := s.id.New()
	if err != nil {
		return View{}, err
	}

	var out View
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		ts := task.NewStore(tx)
		t, err := task.GetOwnedTx(ctx, ts, userID, taskID)
		if err != nil {
			return err
		}
		if t.Status == task.StatusDone {
			return task.ErrInvalidStatus.WithMessage("task is DONE")
		}

		// 前の勤怠に取り残されたセッションは、その退勤時刻で先に閉じる
		if _, err := StopOffDutyTx(ctx, tx, s.att, userID, now); err != nil {
			return err
		}
		running, err := ts.RunningSession(ctx, userID)
		if err != nil {
			return fmt.Errorf("running session: %w", err)
		}
		if running != nil {
			return ErrAlreadyRunning.WithMessage("task %s is running", running.TaskID)
		}

		if _, err := s.att.EnsureOpenTx(ctx, tx, userID, now); err != nil {
			return err
		}

		if t.Status == task.StatusTodo || t.Status == task.StatusReview {
			if err := ts.UpdateStatus(ctx, t.ID, task.StatusInProgress); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			t.Status = task.StatusInProgress
		}

		// セッション外に取り残された休憩は開始時刻で閉じる
		if _, err := breaks.EndOpenTx(ctx, tx, t.ID, now); err != nil {
			return err
		}

		sess := task.Session{ID: id, TaskID: t.ID, UserID: userID, StartedAt: db.Stamp(now)}
		if err := ts.InsertSession(ctx, sess); err != nil {
			if db.IsDuplicateKey(err) {
				return ErrAlreadyRunning
			}
			return fmt.Errorf("insert session: %w", err)
		}
		if err := task.Resume(ctx, ts, t, sess.StartedAt); err != nil {
			return err
		}

		acc, err := task.Accumulated(ctx, ts, *t)
		if err != nil {
			return err
		}
		out = toView(sess, *t, acc)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	log.Printf("[INFO] session start user=%s task=%s", userID, taskID)
	return out, nil
}

// POST /sessions/stop
func (s *Service) StopTask(ctx context.Context, userID string, now time.Time) (View, error) {
	var out View
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		v, err := stopCappedTx(ctx, tx, s.att, userID, now, false)
		if err != nil {
			return err
		}
		if v == nil {
			return ErrNotRunning
		}
		out = *v
		return nil
	})
	if err != nil {
		return View{}, err
	}
	log.Printf("[INFO] session stop user=%s task=%s seconds=%d", userID, out.TaskID, out.AccumulatedSeconds)
	return out, nil
}

// StopIfOffDutyTx implements attendance.WorkStopper.
func (s *Service) StopIfOffDutyTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) error {
	v, err := StopOffDutyTx(ctx, tx, s.att, userID, now)
	if err != nil {
		return err
	}
	if v != nil {
		log.Printf("[INFO] session stopped off duty user=%s task=%s seconds=%d", userID, v.TaskID, v.AccumulatedSeconds)
	}
	return nil
}

// StopOffDutyTx は実行中セッションを支配する勤怠が閉じていれば、その退勤時刻で止める。
// 勤怠が開いている、またはセッションが無ければ nil。
func StopOffDutyTx(ctx context.Context, tx db.DBTX, lim task.DutyLimiter, userID string, now time.Time) (*View, error) {
	return stopCappedTx(ctx, tx, lim, userID, now, true)
}

func stopCappedTx(ctx context.Context, tx db.DBTX, lim task.DutyLimiter, userID string, now time.Time, offDutyOnly bool) (*View, error) {
	sess, err := task.NewStore(tx).RunningSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("running session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	limit, closed, err := lim.WorkLimitTx(ctx, tx, userID, sess.StartedAt, now)
	if err != nil {
		return nil, err
	}
	if offDutyOnly && !closed {
		return nil, nil
	}
	return StopRunningTx(ctx, tx, userID, limit)
}

// StopRunningTx は実行中セッションを at で閉じる。無ければ nil。
// 開いている休憩を閉じ、計測分を累計に反映してから終了する。
func StopRunningTx(ctx context.Context, tx db.DBTX, userID string, at time.Time) (*View, error) {
	ts := task.NewStore(tx)
	sess, err := ts.RunningSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("running session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	t, err := ts.GetTask(ctx, sess.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, task.ErrNotFound
	}

	end := at
	if end.Before(sess.StartedAt) {
		end = sess.StartedAt
	}
	if _, err := breaks.EndOpenTx(ctx, tx, t.ID, end); err != nil {
		return nil, err
	}
	if err := task.Flush(ctx, ts, t, end); err != nil {
		return nil, err
	}
	ended, err := ts.EndSession(ctx, sess.ID, end)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if !ended {
		return nil, nil
	}
	stamp := db.Stamp(end)
	sess.EndedAt = &stamp

	acc, err := task.Accumulated(ctx, ts, *t)
	if err != nil {
		return nil, err
	}
	v := toView(*sess, *t, acc)
	return &v, nil
}
