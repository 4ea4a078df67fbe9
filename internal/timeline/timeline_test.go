package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/manuallog"
	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db/dbtest"
	"ATLAS-backend/internal/platform/idgen"
	"ATLAS-backend/internal/task"
)

var pkt = time.FixedZone("PKT", 5*3600)

func at(h, m int) time.Time { return time.Date(2025, 6, 10, h, m, 0, 0, pkt) }

func ptr(t time.Time) *time.Time { return &t }

func window(from, to time.Time) attendance.Window {
	return attendance.Window{Start: from, End: to, Source: attendance.SourceAttendance, RefID: "a1"}
}

func seg(from, to time.Time, k Kind, ref string) Segment {
	return Segment{Start: from, End: to, Kind: k, RefID: ref}
}

func TestBuildSplitsDutyAroundBreak(t *testing.T) {
	got := Build(Sources{
		Windows: []attendance.Window{window(at(9, 0), at(17, 0))},
		Breaks:  []breaks.Break{{ID: "b1", StartedAt: at(12, 0), EndedAt: ptr(at(12, 30))}},
	}, at(18, 0))

	assert.Equal(t, []Segment{
		seg(at(9, 0), at(12, 0), KindDuty, "a1"),
		seg(at(12, 0), at(12, 30), KindBreak, "b1"),
		seg(at(12, 30), at(17, 0), KindDuty, "a1"),
	}, got)
}

func TestBuildBreakWinsAtDutyStart(t *testing.T) {
	got := Build(Sources{
		Windows:  []attendance.Window{window(at(9, 0), at(17, 0))},
		Breaks:   []breaks.Break{{ID: "b1", StartedAt: at(9, 0), EndedAt: ptr(at(9, 15))}},
		Sessions: []task.Session{{ID: "s1", TaskID: "t1", StartedAt: at(9, 30), EndedAt: ptr(at(16, 0))}},
	}, at(18, 0))

	assert.Equal(t, []Segment{
		seg(at(9, 0), at(9, 15), KindBreak, "b1"),
		seg(at(9, 15), at(9, 30), KindIdle, "a1"),
		seg(at(9, 30), at(16, 0), KindDuty, "t1"),
		seg(at(16, 0), at(17, 0), KindIdle, "a1"),
	}, got)
}

func TestBuildBreakInsideSession(t *testing.T) {
	got := Build(Sources{
		Windows:  []attendance.Window{window(at(9, 0), at(13, 0))},
		Sessions: []task.Session{{ID: "s1", TaskID: "t1", StartedAt: at(9, 0)}},
		Breaks:   []breaks.Break{{ID: "b1", StartedAt: at(11, 0)}},
	}, at(12, 0))

	// 開いている休憩とセッションは now まで、勤務区間の外は切り落とす
	assert.Equal(t, []Segment{
		seg(at(9, 0), at(11, 0), KindDuty, "t1"),
		seg(at(11, 0), at(12, 0), KindBreak, "b1"),
		seg(at(12, 0), at(13, 0), KindIdle, "a1"),
	}, got)
}

func TestBuildManualLogsStayOffDuty(t *testing.T) {
	got := Build(Sources{
		Windows: []attendance.Window{window(at(9, 0), at(17, 0))},
		ManualLogs: []manuallog.Log{
			{ID: "m2", StartAt: at(17, 30), EndAt: ptr(at(18, 30))},
			{ID: "m1", StartAt: at(16, 30), EndAt: ptr(at(17, 15))},
			{ID: "m0", StartAt: at(10, 0), EndAt: ptr(at(11, 0))},
		},
	}, at(20, 0))

	assert.Equal(t, []Segment{
		seg(at(9, 0), at(17, 0), KindDuty, "a1"),
		seg(at(17, 0), at(17, 15), KindManualLog, "m1"),
		seg(at(17, 30), at(18, 30), KindManualLog, "m2"),
	}, got)

	assert.Equal(t, Totals{DutySeconds: 8 * 3600, ManualLogSeconds: 75 * 60}, Sum(got))
}

func TestBuildClipsOverlappingWindows(t *testing.T) {
	got := Build(Sources{
		Windows: []attendance.Window{
			{Start: at(13, 0), End: at(18, 0), Source: attendance.SourceOverride, RefID: "o1"},
			window(at(9, 0), at(14, 0)),
		},
	}, at(20, 0))

	require.Len(t, got, 2)
	assert.Equal(t, seg(at(9, 0), at(14, 0), KindDuty, "a1"), got[0])
	assert.Equal(t, seg(at(14, 0), at(18, 0), KindDuty, "o1"), got[1])
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Start.Before(got[i-1].End))
	}
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(Sources{}, at(12, 0)))
}

func TestServiceBuild(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	cal := dutycal.New(pkt)
	att := attendance.NewService(conn, cal, attendance.DefaultPolicy(), idgen.NewULID())

	_, _, err := att.ClockIn(ctx, "u1", at(9, 0))
	require.NoError(t, err)
	_, err = att.ClockOut(ctx, "u1", at(17, 0))
	require.NoError(t, err)

	ts := task.NewStore(conn)
	require.NoError(t, ts.InsertTask(ctx, task.Task{ID: "t1", AssigneeID: "u1", Title: "x", Status: task.StatusInProgress}))
	require.NoError(t, ts.InsertSession(ctx, task.Session{ID: "s1", TaskID: "t1", UserID: "u1", StartedAt: at(10, 0)}))
	_, err = ts.EndSession(ctx, "s1", at(16, 0))
	require.NoError(t, err)

	bs := breaks.NewStore(conn)
	require.NoError(t, bs.Insert(ctx, breaks.Break{
		ID: "b1", TaskID: "t1", UserID: "u1", Reasons: []breaks.Reason{breaks.ReasonLunch}, StartedAt: at(12, 0),
	}))
	_, err = bs.Close(ctx, "b1", at(12, 30), 1800)
	require.NoError(t, err)

	svc := NewService(conn, att)
	tl, err := svc.Build(ctx, auth.Identity{UserID: "u1", Role: auth.RoleMember}, "u1", "2025-06-10", at(20, 0))
	require.NoError(t, err)
	require.Len(t, tl.Windows, 1)

	kinds := make([]Kind, 0, len(tl.Segments))
	for _, s := range tl.Segments {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []Kind{KindIdle, KindDuty, KindBreak, KindDuty, KindIdle}, kinds)
	assert.Equal(t, Totals{DutySeconds: 5*3600 + 1800, BreakSeconds: 1800, IdleSeconds: 2 * 3600}, tl.Totals)

	_, err = svc.Build(ctx, auth.Identity{UserID: "u2", Role: auth.RoleMember}, "u1", "2025-06-10", at(20, 0))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	mgr, err := svc.Build(ctx, auth.Identity{UserID: "m1", Role: auth.RoleManager}, "u1", "2025-06-09", at(20, 0))
	require.NoError(t, err)
	assert.Empty(t, mgr.Segments)
}
