// Package activesession reports the user's single running work session.
package activesession

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/task"
	"ATLAS-backend/internal/worksession"
)

// AttendanceReader は自動退勤を走らせてから現在の勤怠を返す。
type AttendanceReader interface {
	CurrentTx(ctx context.Context, tx db.DBTX, userID string, now time.Time) (*attendance.View, error)
	task.DutyLimiter
}

type SessionRef struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	StartedAt time.Time `json:"started_at"`
}

type TaskRef struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Status task.Status `json:"status"`
}

// View: クライアントは ServerNow と RunningStartedAt から経過を手元で進める。
type View struct {
	Session            SessionRef       `json:"session"`
	Task               TaskRef          `json:"task"`
	AccumulatedSeconds int64            `json:"accumulated_seconds"`
	RunningStartedAt   *time.Time       `json:"running_started_at"`
	IsPaused           bool             `json:"is_paused"`
	OpenBreak          *breaks.View     `json:"open_break"`
	Attendance         *attendance.View `json:"attendance"`
	ServerNow          time.Time        `json:"server_now"`
}

// Snapshot は実行中セッションの有無に関わらず勤怠も返す。
type Snapshot struct {
	Active     *View            `json:"active"`
	Attendance *attendance.View `json:"attendance"`
	ServerNow  time.Time        `json:"server_now"`
}

type Tracker struct {
	db  *sql.DB
	att AttendanceReader
}

func NewTracker(conn *sql.DB, att AttendanceReader) *Tracker {
	return &Tracker{db: conn, att: att}
}

// Active は自動退勤を適用してから実行中セッションを探す。Active == nil は無し。
// 読み取りだが書き込みを伴うので書き込み Tx で回す。
func (t *Tracker) Active(ctx context.Context, userID string, now time.Time) (Snapshot, error) {
	snap := Snapshot{ServerNow: now.UTC()}
	err := db.RunInTx(ctx, t.db, nil, func(ctx context.Context, tx db.DBTX) error {
		att, err := t.att.CurrentTx(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		snap.Attendance = att

		if err := t.stopIfOffDuty(ctx, tx, userID, now); err != nil {
			return err
		}

		v, err := activeTx(ctx, tx, userID)
		if err != nil || v == nil {
			return err
		}
		v.Attendance = att
		v.ServerNow = snap.ServerNow
		snap.Active = v
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// stopIfOffDuty: セッション開始時点の勤怠が閉じていれば（退勤・自動退勤とも）、計測もその退勤時刻で止める。
func (t *Tracker) stopIfOffDuty(ctx context.Context, tx db.DBTX, userID string, now time.Time) error {
	stopped, err := worksession.StopOffDutyTx(ctx, tx, t.att, userID, now)
	if err != nil {
		return err
	}
	if stopped != nil {
		log.Printf("[INFO] session auto-stopped user=%s task=%s at=%s",
			userID, stopped.TaskID, stopped.EndedAt.Format(time.RFC3339))
	}
	return nil
}

func activeTx(ctx context.Context, tx db.DBTX, userID string) (*View, error) {
	ts := task.NewStore(tx)
	sess, err := ts.RunningSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("running session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	tk, err := ts.GetTask(ctx, sess.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if tk == nil {
		return nil, task.ErrNotFound.WithMessage("task %s of running session is missing", sess.TaskID)
	}

	open, err := breaks.OpenForTaskTx(ctx, tx, tk.ID)
	if err != nil {
		return nil, fmt.Errorf("open break: %w", err)
	}
	acc, err := task.Accumulated(ctx, ts, *tk)
	if err != nil {
		return nil, err
	}

	v := &View{
		Session:            SessionRef{ID: sess.ID, TaskID: sess.TaskID, StartedAt: sess.StartedAt},
		Task:               TaskRef{ID: tk.ID, Title: tk.Title, Status: tk.Status},
		AccumulatedSeconds: acc,
		IsPaused:           open != nil,
	}
	if open != nil {
		bv := open.ToView()
		v.OpenBreak = &bv
	} else {
		v.RunningStartedAt = runningStartedAt(*sess, *tk)
	}
	return v, nil
}

// runningStartedAt は最後の再開時刻とセッション開始の遅い方。
func runningStartedAt(s task.Session, t task.Task) *time.Time {
	at := s.StartedAt
	if t.LastResumedAt != nil && t.LastResumedAt.After(at) {
		at = *t.LastResumedAt
	}
	return &at
}
