package breaks

import (
	"strings"
	"time"

	"ATLAS-backend/internal/platform/apperr"
)

type Reason string

const (
	ReasonNamaz       Reason = "NAMAZ"
	ReasonLunch       Reason = "LUNCH"
	ReasonDinner      Reason = "DINNER"
	ReasonRefreshment Reason = "REFRESHMENT"
	ReasonOther       Reason = "OTHER"
)

// 表示・保存順
var reasonOrder = []Reason{ReasonNamaz, ReasonLunch, ReasonDinner, ReasonRefreshment, ReasonOther}

// 旧クライアントの値
var legacyReasons = map[string]Reason{
	"MEAL": ReasonDinner,
}

var (
	ErrInvalidReasons    = apperr.Invalid("INVALID_BREAK_REASONS", "at least one valid break reason is required")
	ErrInvalidTaskStatus = apperr.Invalid("INVALID_TASK_STATUS", "breaks can only be taken on a task in progress")
	ErrBreakAlreadyOpen  = apperr.Conflict("BREAK_ALREADY_OPEN", "an open break already exists for this task")
	ErrNoActiveBreak     = apperr.Conflict("NO_ACTIVE_BREAK", "no open break for this task")
)

// NormalizeReasons は大文字化・MEAL→DINNER・重複除去を行う。
// 列挙外のタグは捨て、結果が空ならエラー。
func NormalizeReasons(in []string) ([]Reason, error) {
	seen := make(map[Reason]bool, len(in))
	for _, raw := range in {
		s := strings.ToUpper(strings.TrimSpace(raw))
		if r, ok := legacyReasons[s]; ok {
			seen[r] = true
			continue
		}
		for _, r := range reasonOrder {
			if string(r) == s {
				seen[r] = true
			}
		}
	}
	out := make([]Reason, 0, len(seen))
	for _, r := range reasonOrder {
		if seen[r] {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrInvalidReasons
	}
	return out, nil
}

func joinReasons(rs []Reason) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func splitReasons(s string) []Reason {
	var out []Reason
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Reason(p))
		}
	}
	return out
}

type Break struct {
	ID              string
	TaskID          string
	UserID          string
	Reasons         []Reason
	Note            *string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds *int64
}

func (b Break) Open() bool { return b.EndedAt == nil }

// DurationBetween は秒未満切り捨て。時計のずれで負になっても 0 に丸める。
func DurationBetween(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
