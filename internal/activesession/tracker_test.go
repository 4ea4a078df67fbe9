package activesession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/db/dbtest"
	"ATLAS-backend/internal/platform/idgen"
	"ATLAS-backend/internal/task"
	"ATLAS-backend/internal/worksession"
)

var pkt = time.FixedZone("PKT", 5*3600)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 10, h, m, 0, 0, pkt)
}

func TestRunningStartedAt(t *testing.T) {
	s := task.Session{StartedAt: at(9, 0)}
	resumed := at(13, 10)
	assert.True(t, runningStartedAt(s, task.Task{LastResumedAt: &resumed}).Equal(resumed))

	early := at(8, 0)
	assert.True(t, runningStartedAt(s, task.Task{LastResumedAt: &early}).Equal(at(9, 0)))
	assert.True(t, runningStartedAt(s, task.Task{}).Equal(at(9, 0)))
}

// 09:00 出勤・作業開始、13:00-13:10 NAMAZ、退勤打刻なし。
func TestWorkdayScenario(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	ids := idgen.NewULID()

	att := attendance.NewService(conn, dutycal.New(pkt), attendance.DefaultPolicy(), ids)
	work := worksession.NewService(conn, att, ids)
	att.SetWorkStopper(work)
	brk := breaks.NewService(conn, att, ids)
	tracker := NewTracker(conn, att)

	var zero int64
	require.NoError(t, task.NewStore(conn).InsertTask(ctx,
		task.Task{ID: "t1", AssigneeID: "u1", Title: "report", Status: task.StatusTodo, TotalSeconds: &zero}))

	_, _, err := att.ClockIn(ctx, "u1", at(9, 0))
	require.NoError(t, err)
	_, err = work.StartTask(ctx, "u1", "t1", at(9, 0))
	require.NoError(t, err)

	snap, err := tracker.Active(ctx, "u1", at(11, 0))
	require.NoError(t, err)
	require.NotNil(t, snap.Active)
	assert.False(t, snap.Active.IsPaused)
	assert.True(t, snap.Active.RunningStartedAt.Equal(at(9, 0)))

	_, err = brk.StartBreak(ctx, "u1", "t1", breaks.StartRequest{Reasons: []string{"NAMAZ"}}, at(13, 0))
	require.NoError(t, err)

	snap, err = tracker.Active(ctx, "u1", at(13, 5))
	require.NoError(t, err)
	require.NotNil(t, snap.Active)
	assert.True(t, snap.Active.IsPaused)
	assert.Nil(t, snap.Active.RunningStartedAt)
	require.NotNil(t, snap.Active.OpenBreak)
	assert.EqualValues(t, 4*3600, snap.Active.AccumulatedSeconds)

	_, err = brk.EndBreak(ctx, "u1", "t1", at(13, 10))
	require.NoError(t, err)

	snap, err = tracker.Active(ctx, "u1", at(17, 0))
	require.NoError(t, err)
	require.NotNil(t, snap.Active)
	assert.False(t, snap.Active.IsPaused)
	assert.True(t, snap.Active.RunningStartedAt.Equal(at(13, 10)), "resumes at break end")
	assert.Equal(t, task.StatusInProgress, snap.Active.Task.Status)
	require.NotNil(t, snap.Active.Attendance)
	assert.Equal(t, attendance.StateOpen, snap.Active.Attendance.State)
	assert.True(t, snap.ServerNow.Equal(at(17, 0)))

	// 23:00 は 12h を超えているので 21:00 で自動退勤
	snap, err = tracker.Active(ctx, "u1", at(23, 0))
	require.NoError(t, err)
	require.NotNil(t, snap.Attendance)
	assert.Equal(t, attendance.StateAutoClosed, snap.Attendance.State)
	assert.True(t, snap.Attendance.AutoOff)
	require.NotNil(t, snap.Attendance.OutTime)
	assert.True(t, snap.Attendance.OutTime.Equal(at(21, 0)), "got %s", snap.Attendance.OutTime)
	assert.Nil(t, snap.Active, "running session is stopped at the auto-off instant")

	tk, err := task.NewStore(conn).GetTask(ctx, "t1")
	require.NoError(t, err)
	// 09:00-13:00 + 13:10-21:00
	assert.EqualValues(t, 4*3600+7*3600+50*60, *tk.TotalSeconds)

	// 2 回目も同じ結果
	again, err := tracker.Active(ctx, "u1", at(23, 30))
	require.NoError(t, err)
	assert.True(t, again.Attendance.OutTime.Equal(*snap.Attendance.OutTime))
	assert.Nil(t, again.Active)
}

func TestActiveWithoutSession(t *testing.T) {
	conn := dbtest.Open(t)
	ids := idgen.NewULID()
	att := attendance.NewService(conn, dutycal.New(pkt), attendance.DefaultPolicy(), ids)

	snap, err := NewTracker(conn, att).Active(context.Background(), "u1", at(10, 0))
	require.NoError(t, err)
	assert.Nil(t, snap.Active)
	assert.Nil(t, snap.Attendance)
}

// 退勤フックを持たない構成でも、退勤済みの勤怠に属するセッションは読み取りで止まる。
func TestActiveStopsSessionAfterClockOut(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	ids := idgen.NewULID()
	att := attendance.NewService(conn, dutycal.New(pkt), attendance.DefaultPolicy(), ids)
	work := worksession.NewService(conn, att, ids)
	tracker := NewTracker(conn, att)

	var zero int64
	require.NoError(t, task.NewStore(conn).InsertTask(ctx,
		task.Task{ID: "t1", AssigneeID: "u1", Title: "report", Status: task.StatusInProgress, TotalSeconds: &zero}))

	_, err := work.StartTask(ctx, "u1", "t1", at(9, 0))
	require.NoError(t, err)
	_, err = att.ClockOut(ctx, "u1", at(17, 5))
	require.NoError(t, err)

	snap, err := tracker.Active(ctx, "u1", at(23, 0))
	require.NoError(t, err)
	assert.Nil(t, snap.Active)
	require.NotNil(t, snap.Attendance)
	assert.Equal(t, attendance.StateClosed, snap.Attendance.State)

	tk, err := task.NewStore(conn).GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 8*3600+5*60, *tk.TotalSeconds)
}
