package timeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/manuallog"
	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/task"
)

// WindowResolver は (user, dutyDate) の勤務区間を返す。
type WindowResolver interface {
	ResolveTx(ctx context.Context, tx db.DBTX, userID string, date dutycal.DateKey, now time.Time) ([]attendance.Window, error)
}

type Timeline struct {
	UserID   string              `json:"user_id"`
	Date     dutycal.DateKey     `json:"date"`
	Windows  []attendance.Window `json:"windows"`
	Segments []Segment           `json:"segments"`
	Totals   Totals              `json:"totals"`
}

type Service struct {
	db      *sql.DB
	windows WindowResolver
}

func NewService(conn *sql.DB, windows WindowResolver) *Service {
	return &Service{db: conn, windows: windows}
}

// Build は毎回読み直して組み立てる。閲覧は本人か管理者のみ。
func (s *Service) Build(ctx context.Context, viewer auth.Identity, userID string, date dutycal.DateKey, now time.Time) (Timeline, error) {
	if !viewer.CanView(userID) {
		return Timeline{}, apperr.ErrForbidden
	}

	var src Sources
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		if src.Windows, err = s.windows.ResolveTx(ctx, tx, userID, date, now); err != nil {
			return err
		}
		for _, w := range src.Windows {
			bs, err := breaks.NewStore(tx).ListOverlapping(ctx, userID, w.Start, w.End)
			if err != nil {
				return fmt.Errorf("list breaks: %w", err)
			}
			src.Breaks = appendBreaks(src.Breaks, bs)

			ss, err := task.NewStore(tx).SessionsOverlapping(ctx, userID, w.Start, w.End)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			src.Sessions = appendSessions(src.Sessions, ss)
		}
		src.ManualLogs, err = manuallog.ListByDateTx(ctx, tx, userID, date)
		return err
	})
	if err != nil {
		return Timeline{}, err
	}

	segs := Build(src, now)
	windows := src.Windows
	if windows == nil {
		windows = []attendance.Window{}
	}
	if segs == nil {
		segs = []Segment{}
	}
	return Timeline{
		UserID:   userID,
		Date:     date,
		Windows:  windows,
		Segments: segs,
		Totals:   Sum(segs),
	}, nil
}

// 区間が複数あると同じ行が重複して取れるので ID で除く。
func appendBreaks(dst, src []breaks.Break) []breaks.Break {
	for _, b := range src {
		dup := false
		for _, d := range dst {
			if d.ID == b.ID {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, b)
		}
	}
	return dst
}

func appendSessions(dst, src []task.Session) []task.Session {
	for _, s := range src {
		dup := false
		for _, d := range dst {
			if d.ID == s.ID {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
