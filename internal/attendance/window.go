package attendance

import (
	"sort"
	"time"
)

// mergeWindows は override を優先し、attendance 窓をその周りで切り抜く。
// 戻り値は Start 昇順で互いに重ならない。長さ 0 の窓は含まない。
func mergeWindows(base *Window, overrides []Window) []Window {
	ovs := make([]Window, 0, len(overrides))
	for _, o := range overrides {
		if o.End.After(o.Start) {
			ovs = append(ovs, o)
		}
	}
	sort.SliceStable(ovs, func(i, j int) bool { return ovs[i].Start.Before(ovs[j].Start) })

	// override 同士が重なる場合は先に始まった方を残す
	clipped := ovs[:0]
	var lastEnd time.Time
	for _, o := range ovs {
		if len(clipped) > 0 && o.Start.Before(lastEnd) {
			o.Start = lastEnd
		}
		if !o.End.After(o.Start) {
			continue
		}
		clipped = append(clipped, o)
		lastEnd = o.End
	}

	out := append([]Window(nil), clipped...)
	if base != nil && base.End.After(base.Start) {
		out = append(out, subtract(*base, clipped)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// subtract returns the parts of w not covered by cuts.
func subtract(w Window, cuts []Window) []Window {
	pieces := []Window{w}
	for _, c := range cuts {
		var next []Window
		for _, p := range pieces {
			if !c.Start.Before(p.End) || !c.End.After(p.Start) {
				next = append(next, p)
				continue
			}
			if p.Start.Before(c.Start) {
				left := p
				left.End = c.Start
				next = append(next, left)
			}
			if c.End.Before(p.End) {
				right := p
				right.Start = c.End
				next = append(next, right)
			}
		}
		pieces = next
	}
	return pieces
}

func attendanceWindow(r *Record, p Policy, now time.Time) *Window {
	if r == nil {
		return nil
	}
	return &Window{
		Start:  r.InTime,
		End:    p.ResolveOutTime(*r, now),
		Source: SourceAttendance,
		RefID:  r.ID,
	}
}

func overrideWindows(ovs []Override) []Window {
	out := make([]Window, 0, len(ovs))
	for _, o := range ovs {
		out = append(out, Window{Start: o.StartAt, End: o.EndAt, Source: SourceOverride, RefID: o.ID})
	}
	return out
}
