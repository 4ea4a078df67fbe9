package task

import "time"

type CreateRequest struct {
	Title      string  `json:"title" binding:"required,max=255"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Status     *string `json:"status,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type View struct {
	ID                 string     `json:"id"`
	AssigneeID         string     `json:"assignee_id"`
	Title              string     `json:"title"`
	Status             Status     `json:"status"`
	AccumulatedSeconds int64      `json:"accumulated_seconds"`
	LastResumedAt      *time.Time `json:"last_resumed_at"`
}

func toView(t Task, accumulated int64) View {
	return View{
		ID:                 t.ID,
		AssigneeID:         t.AssigneeID,
		Title:              t.Title,
		Status:             t.Status,
		AccumulatedSeconds: accumulated,
		LastResumedAt:      t.LastResumedAt,
	}
}
