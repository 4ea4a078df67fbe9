package task

import (
	"time"

	"ATLAS-backend/internal/platform/apperr"
)

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusRevision   Status = "REVISION"
	StatusReview     Status = "REVIEW"
	StatusDone       Status = "DONE"
)

var ErrInvalidStatus = apperr.Invalid("INVALID_TASK_STATUS", "invalid task status")

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusTodo, StatusInProgress, StatusRevision, StatusReview, StatusDone:
		return st, nil
	}
	return "", ErrInvalidStatus.WithMessage("unknown task status %q", s)
}

// IsActive: 作業中として時間を計上してよい状態。休憩もこの状態でのみ取れる。
func (s Status) IsActive() bool {
	return s == StatusInProgress || s == StatusRevision
}

type Task struct {
	ID         string
	AssigneeID string
	Title      string
	Status     Status
	// TotalSeconds は確定済み作業時間の累計。NULL は集計前の古い行。
	TotalSeconds  *int64
	LastResumedAt *time.Time
}

// Session is one work stint. EndedAt == nil means running.
type Session struct {
	ID        string
	TaskID    string
	UserID    string
	StartedAt time.Time
	EndedAt   *time.Time
}

func (s Session) Running() bool { return s.EndedAt == nil }

// Seconds は [StartedAt, min(EndedAt, now)) を秒で切り捨て。
func (s Session) Seconds(now time.Time) int64 {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return floorSeconds(end.Sub(s.StartedAt))
}

func floorSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
