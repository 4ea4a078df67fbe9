package manuallog

import (
	"strings"
	"time"

	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/apperr"
)

type Category string

const (
	CategoryMeeting  Category = "MEETING"
	CategoryTraining Category = "TRAINING"
	CategoryResearch Category = "RESEARCH"
	CategorySupport  Category = "SUPPORT"
	CategoryAdmin    Category = "ADMIN"
	CategoryTravel   Category = "TRAVEL"
	CategoryOther    Category = "OTHER"
)

var categoryOrder = []Category{
	CategoryMeeting, CategoryTraining, CategoryResearch, CategorySupport,
	CategoryAdmin, CategoryTravel, CategoryOther,
}

var (
	ErrOverlapping     = apperr.Conflict("OVERLAPPING_MANUAL_LOG", "manual log overlaps an existing log")
	ErrAlreadyRunning  = apperr.Conflict("MANUAL_LOG_ALREADY_RUNNING", "another manual log is still running")
	ErrNotRunning      = apperr.Conflict("MANUAL_LOG_NOT_RUNNING", "manual log is already stopped")
	ErrDateNotAllowed  = apperr.Invalid("MANUAL_LOG_DATE_NOT_ALLOWED", "manual log date is outside the editable range")
	ErrInvalidCategory = apperr.Invalid("INVALID_CATEGORIES", "at least one known category is required")
	ErrInvalidInterval = apperr.Invalid("INVALID_INTERVAL", "invalid manual log interval")
	ErrNotFound        = apperr.NotFound("MANUAL_LOG_NOT_FOUND", "manual log not found")
)

// NormalizeCategories は大文字小文字を無視し重複を除く。未知の値はエラー。
func NormalizeCategories(in []string) ([]Category, error) {
	seen := make(map[Category]bool, len(in))
	for _, raw := range in {
		s := Category(strings.ToUpper(strings.TrimSpace(raw)))
		if s == "" {
			continue
		}
		known := false
		for _, c := range categoryOrder {
			if c == s {
				known = true
				break
			}
		}
		if !known {
			return nil, ErrInvalidCategory.WithMessage("unknown category %q", raw)
		}
		seen[s] = true
	}
	out := make([]Category, 0, len(seen))
	for _, c := range categoryOrder {
		if seen[c] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrInvalidCategory
	}
	return out, nil
}

func joinCategories(cs []Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitCategories(s string) []Category {
	var out []Category
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Category(p))
		}
	}
	return out
}

type Log struct {
	ID              string
	UserID          string
	Description     string
	Date            dutycal.DateKey
	Categories      []Category
	StartAt         time.Time
	EndAt           *time.Time
	DurationSeconds int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (l Log) Running() bool { return l.EndAt == nil }

// EffectiveEnd は実行中なら now。
func (l Log) EffectiveEnd(now time.Time) time.Time {
	if l.EndAt != nil {
		return *l.EndAt
	}
	return now
}
