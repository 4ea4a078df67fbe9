package task

import (
	"context"
	"fmt"
	"time"

	"ATLAS-backend/internal/platform/db"
)

// DutyLimiter は作業を数えてよい上限を返す。since に始まった作業の勤怠が
// 閉じていれば (outTime, true)。attendance.Service が実装する。
type DutyLimiter interface {
	WorkLimitTx(ctx context.Context, tx db.DBTX, userID string, since, now time.Time) (time.Time, bool, error)
}

// Flush は再開点から now までを累計に足し、計測を止める（last_resumed_at = NULL）。
// 既に止まっていれば何もしない。
func Flush(ctx context.Context, st *Store, t *Task, now time.Time) error {
	if t.LastResumedAt == nil {
		return nil
	}
	secs := floorSeconds(now.Sub(*t.LastResumedAt))
	if err := st.AddSeconds(ctx, t.ID, secs); err != nil {
		return fmt.Errorf("flush task %s: %w", t.ID, err)
	}
	total := secs
	if t.TotalSeconds != nil {
		total += *t.TotalSeconds
	}
	t.TotalSeconds = &total
	t.LastResumedAt = nil
	return nil
}

// Resume restarts the clock at `at`. カウンタの無い古い行はここで初期化する。
func Resume(ctx context.Context, st *Store, t *Task, at time.Time) error {
	if t.TotalSeconds == nil {
		acc, err := Accumulated(ctx, st, *t)
		if err != nil {
			return err
		}
		if err := st.SeedTotal(ctx, t.ID, acc); err != nil {
			return fmt.Errorf("seed counter %s: %w", t.ID, err)
		}
		t.TotalSeconds = &acc
	}
	if err := st.SetResumed(ctx, t.ID, &at); err != nil {
		return fmt.Errorf("resume task %s: %w", t.ID, err)
	}
	t.LastResumedAt = &at
	return nil
}

// Accumulated は確定済みの作業秒数。
// カウンタがあればそれが正。無い古い行だけ閉じたセッションから数え直す。
func Accumulated(ctx context.Context, st *Store, t Task) (int64, error) {
	if t.TotalSeconds != nil {
		return *t.TotalSeconds, nil
	}
	closed, err := st.ClosedSessions(ctx, t.ID)
	if err != nil {
		return 0, fmt.Errorf("closed sessions for %s: %w", t.ID, err)
	}
	var sum int64
	for _, s := range closed {
		sum += s.Seconds(*s.EndedAt)
	}
	return sum, nil
}
