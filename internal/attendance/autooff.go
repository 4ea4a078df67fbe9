package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"ATLAS-backend/internal/platform/db"
)

const DefaultMaxDuty = 12 * time.Hour

// Policy は自動退勤の唯一の基準。
// OPEN のまま inTime + MaxDuty を超えた記録は inTime + MaxDuty で閉じる。
// 最終操作時刻は見ない。閉じる時刻は inTime だけで決まる。
type Policy struct {
	MaxDuty time.Duration
}

func DefaultPolicy() Policy { return Policy{MaxDuty: DefaultMaxDuty} }

func (p Policy) Cap(r Record) time.Time { return r.InTime.Add(p.MaxDuty) }

// Due reports whether an OPEN record must be auto-closed at now.
func (p Policy) Due(r Record, now time.Time) (time.Time, bool) {
	if r.State() != StateOpen {
		return time.Time{}, false
	}
	return p.Cap(r), now.Sub(r.InTime) > p.MaxDuty
}

// ResolveOutTime は読み取り専用。永続化はしない。
// 非減少: OPEN のままなら now を進めても前より早い値は返らない。
func (p Policy) ResolveOutTime(r Record, now time.Time) time.Time {
	if r.OutTime != nil {
		return *r.OutTime
	}
	if now.Before(r.InTime) {
		return r.InTime
	}
	if limit := p.Cap(r); now.After(limit) {
		return limit
	}
	return now
}

// DutySeconds は [inTime, effectiveOut) の秒数。負にはしない。
func (p Policy) DutySeconds(r Record, now time.Time) int64 {
	d := p.ResolveOutTime(r, now).Sub(r.InTime)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Normalizer closes overdue records. Safe to run concurrently for the same user.
type Normalizer struct {
	policy Policy
}

func NewNormalizer(p Policy) Normalizer { return Normalizer{policy: p} }

// Normalize は 1 件を評価する。既に閉じていれば何もしない。
func (n Normalizer) Normalize(ctx context.Context, st *Store, r Record, now time.Time) (Record, error) {
	closeAt, due := n.policy.Due(r, now)
	if !due {
		return r, nil
	}

	closed, err := st.Close(ctx, r.ID, closeAt, true)
	if err != nil {
		return r, fmt.Errorf("auto-off %s: %w", r.ID, err)
	}
	if !closed {
		// 並行リクエストが先に閉じた。保存された値を正とする
		cur, err := st.GetByID(ctx, r.ID)
		if err != nil {
			return r, fmt.Errorf("reload %s: %w", r.ID, err)
		}
		if cur == nil {
			return r, fmt.Errorf("attendance %s vanished", r.ID)
		}
		return *cur, nil
	}

	log.Printf("[INFO] auto-off user=%s attendance=%s date=%s out=%s",
		r.UserID, r.ID, r.DutyDate, closeAt.UTC().Format(time.RFC3339))

	at := db.Stamp(closeAt)
	r.OutTime = &at
	r.AutoOff = true
	return r, nil
}

// NormalizeUser は user の OPEN な記録をすべて評価し、評価後の状態を返す。
func (n Normalizer) NormalizeUser(ctx context.Context, st *Store, userID string, now time.Time) ([]Record, error) {
	open, err := st.ListOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open attendance: %w", err)
	}
	out := make([]Record, 0, len(open))
	for _, r := range open {
		nr, err := n.Normalize(ctx, st, r, now)
		if err != nil {
			return nil, err
		}
		out = append(out, nr)
	}
	return out, nil
}
