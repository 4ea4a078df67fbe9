package manuallog

import (
	"time"

	"ATLAS-backend/internal/dutycal"
)

// Input は作成・編集共通。EndAt 省略で実行中のログになる。
type Input struct {
	Description string     `json:"description" binding:"required,max=500"`
	Date        string     `json:"date" binding:"required,datetime=2006-01-02"`
	Categories  []string   `json:"categories" binding:"required,min=1"`
	StartAt     time.Time  `json:"start_at" binding:"required"`
	EndAt       *time.Time `json:"end_at,omitempty"`
}

type View struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Description     string          `json:"description"`
	Date            dutycal.DateKey `json:"date"`
	Categories      []Category      `json:"categories"`
	StartAt         time.Time       `json:"start_at"`
	EndAt           *time.Time      `json:"end_at"`
	DurationSeconds int64           `json:"duration_seconds"`
	Running         bool            `json:"running"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (l Log) ToView() View {
	return View{
		ID:              l.ID,
		UserID:          l.UserID,
		Description:     l.Description,
		Date:            l.Date,
		Categories:      l.Categories,
		StartAt:         l.StartAt,
		EndAt:           l.EndAt,
		DurationSeconds: l.DurationSeconds,
		Running:         l.Running(),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}
