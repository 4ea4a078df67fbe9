package breaks

import "time"

type StartRequest struct {
	Reasons []string `json:"reasons" binding:"required,min=1"`
	Note    *string  `json:"note,omitempty" binding:"omitempty,max=255"`
}

type View struct {
	ID              string     `json:"id"`
	TaskID          string     `json:"task_id"`
	UserID          string     `json:"user_id"`
	Reasons         []Reason   `json:"reasons"`
	Note            *string    `json:"note,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds *int64     `json:"duration_seconds"`
}

func (b Break) ToView() View {
	return View{
		ID:              b.ID,
		TaskID:          b.TaskID,
		UserID:          b.UserID,
		Reasons:         b.Reasons,
		Note:            b.Note,
		StartedAt:       b.StartedAt,
		EndedAt:         b.EndedAt,
		DurationSeconds: b.DurationSeconds,
	}
}
