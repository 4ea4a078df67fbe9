package attendance

import (
	"time"

	"ATLAS-backend/internal/dutycal"
)

// State は outTime / autoOff の組み合わせから推測せず、名前で扱う。
type State string

const (
	StateOpen       State = "OPEN"
	StateAutoClosed State = "AUTO_CLOSED"
	StateClosed     State = "CLOSED"
)

// Record は (user, duty date) ごとに 1 行。InTime は作成後に変わらない。
type Record struct {
	ID       string
	UserID   string
	DutyDate dutycal.DateKey
	InTime   time.Time
	OutTime  *time.Time
	AutoOff  bool
}

func (r Record) State() State {
	switch {
	case r.OutTime == nil:
		return StateOpen
	case r.AutoOff:
		return StateAutoClosed
	default:
		return StateClosed
	}
}

// Override は管理者が入力した勤務区間。端末の打刻より優先される。
type Override struct {
	ID        string
	UserID    string
	DutyDate  dutycal.DateKey
	StartAt   time.Time
	EndAt     time.Time
	Note      *string
	CreatedBy string
	CreatedAt time.Time
}

type Source string

const (
	SourceAttendance Source = "ATTENDANCE"
	SourceOverride   Source = "OVERRIDE"
)

// Window is one derived on-duty interval [Start, End).
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source Source    `json:"source"`
	RefID  string    `json:"ref_id"`
}

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }
