// Package timeline merges duty windows, breaks, work sessions and manual
// logs into one ordered per-day view. Nothing here is persisted.
package timeline

import (
	"sort"
	"time"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/manuallog"
	"ATLAS-backend/internal/task"
)

type Kind string

const (
	KindDuty      Kind = "DUTY"
	KindBreak     Kind = "BREAK"
	KindIdle      Kind = "IDLE"
	KindManualLog Kind = "MANUAL_LOG"
)

type Segment struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Kind  Kind      `json:"kind"`
	RefID string    `json:"ref_id"`
}

func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

type Totals struct {
	DutySeconds      int64 `json:"duty_seconds"`
	BreakSeconds     int64 `json:"break_seconds"`
	IdleSeconds      int64 `json:"idle_seconds"`
	ManualLogSeconds int64 `json:"manual_log_seconds"`
}

// Sources は 1 日分の材料。実行中のもの（End 無し）は now で閉じる。
type Sources struct {
	Windows    []attendance.Window
	Breaks     []breaks.Break
	Sessions   []task.Session
	ManualLogs []manuallog.Log
}

type span struct {
	start, end time.Time
	ref        string
}

func (s span) covers(a, b time.Time) bool { return !s.start.After(a) && !s.end.Before(b) }

func breakSpans(bs []breaks.Break, now time.Time) []span {
	out := make([]span, 0, len(bs))
	for _, b := range bs {
		end := now
		if b.EndedAt != nil {
			end = *b.EndedAt
		}
		out = append(out, span{start: b.StartedAt, end: end, ref: b.ID})
	}
	return out
}

func sessionSpans(ss []task.Session, now time.Time) []span {
	out := make([]span, 0, len(ss))
	for _, s := range ss {
		end := now
		if s.EndedAt != nil {
			end = *s.EndedAt
		}
		out = append(out, span{start: s.StartedAt, end: end, ref: s.TaskID})
	}
	return out
}

// clip は [lo, hi) に収まる部分だけ返す。
func clip(sp []span, lo, hi time.Time) []span {
	var out []span
	for _, s := range sp {
		if s.start.Before(lo) {
			s.start = lo
		}
		if s.end.After(hi) {
			s.end = hi
		}
		if s.start.Before(s.end) {
			out = append(out, s)
		}
	}
	return out
}

func appendMerged(out []Segment, seg Segment) []Segment {
	if !seg.Start.Before(seg.End) {
		return out
	}
	if n := len(out); n > 0 {
		last := &out[n-1]
		if last.Kind == seg.Kind && last.RefID == seg.RefID && last.End.Equal(seg.Start) {
			last.End = seg.End
			return out
		}
	}
	return append(out, seg)
}

// windowSegments は 1 つの勤務区間を BREAK > DUTY > IDLE の優先順でラベル付けする。
// 半開区間なので、勤務開始と同時に始まる休憩は BREAK になる。
// 区間内にセッションが 1 本も無ければ休憩以外はすべて DUTY。
func windowSegments(w attendance.Window, brs, sess []span) []Segment {
	brs = clip(brs, w.Start, w.End)
	sess = clip(sess, w.Start, w.End)

	cuts := []time.Time{w.Start, w.End}
	for _, s := range brs {
		cuts = append(cuts, s.start, s.end)
	}
	for _, s := range sess {
		cuts = append(cuts, s.start, s.end)
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })

	var out []Segment
	for i := 0; i+1 < len(cuts); i++ {
		a, b := cuts[i], cuts[i+1]
		if !a.Before(b) {
			continue
		}
		seg := Segment{Start: a, End: b, Kind: KindIdle, RefID: w.RefID}
		switch {
		case coveredBy(brs, a, b, &seg.RefID):
			seg.Kind = KindBreak
		case coveredBy(sess, a, b, &seg.RefID):
			seg.Kind = KindDuty
		case len(sess) == 0:
			seg.Kind = KindDuty
		}
		out = appendMerged(out, seg)
	}
	return out
}

// coveredBy は [a, b) を完全に覆う最初の span の ref を書き込む。
func coveredBy(sp []span, a, b time.Time, ref *string) bool {
	for _, s := range sp {
		if s.covers(a, b) {
			*ref = s.ref
			return true
		}
	}
	return false
}

// offDuty は勤務区間に掛からない部分だけ残す。
func offDuty(s span, windows []attendance.Window) []span {
	pieces := []span{s}
	for _, w := range windows {
		var next []span
		for _, p := range pieces {
			if !p.start.Before(w.End) || !w.Start.Before(p.end) {
				next = append(next, p)
				continue
			}
			if p.start.Before(w.Start) {
				next = append(next, span{start: p.start, end: w.Start, ref: p.ref})
			}
			if w.End.Before(p.end) {
				next = append(next, span{start: w.End, end: p.end, ref: p.ref})
			}
		}
		pieces = next
	}
	return pieces
}

// Build は Start 昇順で重なりの無いセグメント列を返す。
func Build(src Sources, now time.Time) []Segment {
	windows := append([]attendance.Window(nil), src.Windows...)
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })

	brs := breakSpans(src.Breaks, now)
	sess := sessionSpans(src.Sessions, now)

	var segs []Segment
	for _, w := range windows {
		segs = append(segs, windowSegments(w, brs, sess)...)
	}
	// 手入力ログは勤務区間と重なる部分を表示から落とす。保存された行は変えない
	for _, l := range src.ManualLogs {
		s := span{start: l.StartAt, end: l.EffectiveEnd(now), ref: l.ID}
		for _, p := range offDuty(s, windows) {
			segs = append(segs, Segment{Start: p.start, End: p.end, Kind: KindManualLog, RefID: p.ref})
		}
	}

	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start.Before(segs[j].Start) })

	// 重なった勤務区間や手入力ログ同士は後ろ側を詰める
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 && s.Start.Before(out[n-1].End) {
			s.Start = out[n-1].End
		}
		out = appendMerged(out, s)
	}
	return out
}

func Sum(segs []Segment) Totals {
	var d [4]time.Duration
	for _, s := range segs {
		switch s.Kind {
		case KindDuty:
			d[0] += s.Duration()
		case KindBreak:
			d[1] += s.Duration()
		case KindIdle:
			d[2] += s.Duration()
		case KindManualLog:
			d[3] += s.Duration()
		}
	}
	return Totals{
		DutySeconds:      int64(d[0] / time.Second),
		BreakSeconds:     int64(d[1] / time.Second),
		IdleSeconds:      int64(d[2] / time.Second),
		ManualLogSeconds: int64(d[3] / time.Second),
	}
}
