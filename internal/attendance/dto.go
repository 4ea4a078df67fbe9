package attendance

import (
	"time"

	"ATLAS-backend/internal/dutycal"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type View struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	DutyDate         dutycal.DateKey `json:"duty_date"`
	State            State           `json:"state"`
	InTime           time.Time       `json:"in_time"`
	OutTime          *time.Time      `json:"out_time"`
	EffectiveOutTime time.Time       `json:"effective_out_time"`
	AutoOff          bool            `json:"auto_off"`
	DutySeconds      int64           `json:"duty_seconds"`
}

type ClockInResponse struct {
	Attendance View `json:"attendance"`
	Created    bool `json:"created"`
}

type StatusResponse struct {
	Attendance *View     `json:"attendance"`
	ServerNow  time.Time `json:"server_now"`
}

// ListQuery: GET /users/:userId/attendance
type ListQuery struct {
	From   *dutycal.DateKey
	To     *dutycal.DateKey
	Limit  int
	Offset int
}

func (q *ListQuery) clamp() {
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

type ListResponse struct {
	Items  []View `json:"items"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type CreateOverrideRequest struct {
	DutyDate string    `json:"duty_date" binding:"required,datetime=2006-01-02"`
	StartAt  time.Time `json:"start_at" binding:"required"`
	EndAt    time.Time `json:"end_at" binding:"required"`
	Note     *string   `json:"note,omitempty" binding:"omitempty,max=255"`
}

type OverrideView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	DutyDate  dutycal.DateKey `json:"duty_date"`
	StartAt   time.Time       `json:"start_at"`
	EndAt     time.Time       `json:"end_at"`
	Note      *string         `json:"note,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

type WindowsResponse struct {
	UserID   string          `json:"user_id"`
	DutyDate dutycal.DateKey `json:"duty_date"`
	Windows  []Window        `json:"windows"`
}

func (o Override) toDTO() OverrideView {
	return OverrideView{
		ID:        o.ID,
		UserID:    o.UserID,
		DutyDate:  o.DutyDate,
		StartAt:   o.StartAt,
		EndAt:     o.EndAt,
		Note:      o.Note,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
	}
}
