package manuallog

import (
	"context"
	"fmt"
	"time"
)

// overlaps は半開区間 [start, end) の交差判定。
// 既存の実行中ログは now まで、end == nil の新規区間は無限に伸びるとみなす。
// 端が接するだけなら重ならない。
func overlaps(existing Log, start time.Time, end *time.Time, now time.Time) bool {
	if end != nil && !existing.StartAt.Before(*end) {
		return false
	}
	return existing.EffectiveEnd(now).After(start)
}

// FindConflict returns the first of userID's logs that intersects
// [startAt, endAt), skipping excludeID. nil when there is none.
func FindConflict(ctx context.Context, st *Store, userID string, startAt time.Time, endAt *time.Time, excludeID string, now time.Time) (*Log, error) {
	candidates, err := st.ListOverlapping(ctx, userID, startAt, endAt)
	if err != nil {
		return nil, fmt.Errorf("overlap candidates: %w", err)
	}
	for i := range candidates {
		c := candidates[i]
		if c.ID == excludeID {
			continue
		}
		if overlaps(c, startAt, endAt, now) {
			return &c, nil
		}
	}
	return nil, nil
}

// FindOpenLog は区間計算とは独立に「実行中は 1 本まで」を見る。
func FindOpenLog(ctx context.Context, st *Store, userID, excludeID string) (*Log, error) {
	open, err := st.ListRunning(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("running logs: %w", err)
	}
	for i := range open {
		if open[i].ID != excludeID {
			return &open[i], nil
		}
	}
	return nil, nil
}
