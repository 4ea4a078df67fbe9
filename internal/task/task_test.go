package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/db/dbtest"
	"ATLAS-backend/internal/platform/idgen"
)

var t0 = time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("REVISION")
	require.NoError(t, err)
	assert.True(t, st.IsActive())
	assert.True(t, StatusInProgress.IsActive())
	assert.False(t, StatusReview.IsActive())
	assert.False(t, StatusDone.IsActive())

	_, err = ParseStatus("in_progress")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSessionSeconds(t *testing.T) {
	end := t0.Add(90*time.Second + 900*time.Millisecond)
	assert.EqualValues(t, 90, Session{StartedAt: t0, EndedAt: &end}.Seconds(t0.Add(time.Hour)))
	assert.EqualValues(t, 0, Session{StartedAt: t0}.Seconds(t0.Add(-time.Minute)))
}

func TestFlushAndAccumulated(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, conn, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		var zero int64
		resumed := t0
		require.NoError(t, st.InsertTask(ctx, Task{ID: "t1", AssigneeID: "u1", Title: "x", Status: StatusInProgress, TotalSeconds: &zero, LastResumedAt: &resumed}))

		tk, err := st.GetTask(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, Flush(ctx, st, tk, t0.Add(10*time.Minute)))
		assert.EqualValues(t, 600, *tk.TotalSeconds)
		assert.Nil(t, tk.LastResumedAt)

		// 停止中の Flush は何も足さない
		require.NoError(t, Flush(ctx, st, tk, t0.Add(20*time.Minute)))

		require.NoError(t, Resume(ctx, st, tk, t0.Add(30*time.Minute)))
		require.NoError(t, Flush(ctx, st, tk, t0.Add(35*time.Minute)))

		stored, err := st.GetTask(ctx, "t1")
		require.NoError(t, err)
		acc, err := Accumulated(ctx, st, *stored)
		require.NoError(t, err)
		assert.EqualValues(t, 900, acc)
		return nil
	})
	require.NoError(t, err)
}

func TestAccumulatedLegacyTaskSumsClosedSessions(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, conn, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		require.NoError(t, st.InsertTask(ctx, Task{ID: "t1", AssigneeID: "u1", Title: "legacy", Status: StatusReview}))
		require.NoError(t, st.InsertSession(ctx, Session{ID: "s1", TaskID: "t1", UserID: "u1", StartedAt: t0}))
		_, err := st.EndSession(ctx, "s1", t0.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, st.InsertSession(ctx, Session{ID: "s2", TaskID: "t1", UserID: "u1", StartedAt: t0.Add(2 * time.Hour)}))
		_, err = st.EndSession(ctx, "s2", t0.Add(2*time.Hour+30*time.Minute))
		require.NoError(t, err)

		tk, err := st.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Nil(t, tk.TotalSeconds)
		acc, err := Accumulated(ctx, st, *tk)
		require.NoError(t, err)
		assert.EqualValues(t, 5400, acc)
		return nil
	})
	require.NoError(t, err)
}

func TestRunningSessionUniquePerUser(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	st := NewStore(conn)

	require.NoError(t, st.InsertSession(ctx, Session{ID: "s1", TaskID: "t1", UserID: "u1", StartedAt: t0}))
	err := st.InsertSession(ctx, Session{ID: "s2", TaskID: "t2", UserID: "u1", StartedAt: t0})
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKey(err))

	// 別ユーザは独立
	require.NoError(t, st.InsertSession(ctx, Session{ID: "s3", TaskID: "t3", UserID: "u2", StartedAt: t0}))

	ok, err := st.EndSession(ctx, "s1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, st.InsertSession(ctx, Session{ID: "s4", TaskID: "t2", UserID: "u1", StartedAt: t0.Add(time.Minute)}))

	running, err := st.RunningSession(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, "s4", running.ID)

	over, err := st.SessionsOverlapping(ctx, "u1", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, over, 2)
}

func TestServiceCreateAndStatus(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	svc := NewService(conn, idgen.NewULID())
	member := auth.Identity{UserID: "u1", Role: auth.RoleMember}
	mgr := auth.Identity{UserID: "m1", Role: auth.RoleManager}

	v, err := svc.Create(ctx, member, CreateRequest{Title: "write report"})
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, v.Status)
	assert.Equal(t, "u1", v.AssigneeID)

	other := "u2"
	_, err = svc.Create(ctx, member, CreateRequest{Title: "x", AssigneeID: &other})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	assigned, err := svc.Create(ctx, mgr, CreateRequest{Title: "x", AssigneeID: &other})
	require.NoError(t, err)
	assert.Equal(t, "u2", assigned.AssigneeID)

	_, err = svc.UpdateStatus(ctx, member, assigned.ID, "DONE")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, NewStore(conn).InsertSession(ctx, Session{ID: "s1", TaskID: v.ID, UserID: "u1", StartedAt: t0}))
	_, err = svc.UpdateStatus(ctx, member, v.ID, "DONE")
	assert.ErrorIs(t, err, ErrSessionRunning)

	up, err := svc.UpdateStatus(ctx, member, v.ID, "REVISION")
	require.NoError(t, err)
	assert.Equal(t, StatusRevision, up.Status)

	list, err := svc.ListFor(ctx, member, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListFor(ctx, member, "u2")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestResumeSeedsLegacyCounter(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	st := NewStore(conn)

	require.NoError(t, st.InsertTask(ctx, Task{ID: "t1", AssigneeID: "u1", Title: "legacy", Status: StatusInProgress}))
	require.NoError(t, st.InsertSession(ctx, Session{ID: "s1", TaskID: "t1", UserID: "u1", StartedAt: t0}))
	_, err := st.EndSession(ctx, "s1", t0.Add(20*time.Minute))
	require.NoError(t, err)

	tk, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, Resume(ctx, st, tk, t0.Add(time.Hour)))
	require.NoError(t, Flush(ctx, st, tk, t0.Add(70*time.Minute)))

	stored, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, stored.TotalSeconds)
	assert.EqualValues(t, 30*60, *stored.TotalSeconds)
}
