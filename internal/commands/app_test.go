package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/clock"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/db/dbtest"
)

const testConfig = `
mode: dev
database:
  driver: sqlite
  path: ":memory:"
auth:
  jwt_secret: test-secret
duty:
  timezone: Asia/Karachi
`

type harness struct {
	t     *testing.T
	r     *gin.Engine
	clk   *clock.Fixed
	token string
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	cfg, err := db.ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	clk := &clock.Fixed{T: start}
	a, err := newApp(cfg, dbtest.Open(t), clk)
	require.NoError(t, err)

	tok, err := auth.SignToken([]byte(cfg.Auth.JWTSecret), "u1", "member", time.Hour, time.Now())
	require.NoError(t, err)
	return &harness{t: t, r: a.router(), clk: clk, token: tok}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthzNeedsNoToken(t *testing.T) {
	h := newHarness(t, time.Now())
	h.token = ""
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/attendance/status", nil).Code)
}

func TestWorkdayThroughTheAPI(t *testing.T) {
	// 2025-06-10 09:00 PKT
	h := newHarness(t, time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC))

	w := h.do(http.MethodPost, "/api/v1/attendance/clock-in", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/v1/tasks", map[string]any{"title": "report"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	taskID := decode[struct {
		ID string `json:"id"`
	}](t, w).ID

	w = h.do(http.MethodPost, "/api/v1/tasks/"+taskID+"/start", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	h.clk.Advance(time.Hour)
	w = h.do(http.MethodPost, "/api/v1/tasks/"+taskID+"/breaks", map[string]any{"reasons": []string{"lunch"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	h.clk.Advance(30 * time.Minute)
	w = h.do(http.MethodPost, "/api/v1/tasks/"+taskID+"/breaks/end", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h.clk.Advance(time.Hour)
	w = h.do(http.MethodPost, "/api/v1/sessions/stop", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do(http.MethodPost, "/api/v1/attendance/clock-out", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/api/v1/users/u1/timeline?date=2025-06-10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tl := decode[struct {
		Segments []struct {
			Kind string `json:"kind"`
		} `json:"segments"`
		Totals struct {
			DutySeconds  int64 `json:"duty_seconds"`
			BreakSeconds int64 `json:"break_seconds"`
		} `json:"totals"`
	}](t, w)

	kinds := make([]string, 0, len(tl.Segments))
	for _, s := range tl.Segments {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []string{"DUTY", "BREAK", "DUTY"}, kinds)
	assert.EqualValues(t, 2*3600, tl.Totals.DutySeconds)
	assert.EqualValues(t, 1800, tl.Totals.BreakSeconds)

	// 他人のタイムラインは見られない
	w = h.do(http.MethodGet, "/api/v1/users/u2/timeline?date=2025-06-10", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/api/v1/users/u1/timeline?date=2025-6-10", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// 上書き作成は本文の検証より先にロールで弾く。
func TestDutyOverridesNeedManager(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC))

	w := h.do(http.MethodPost, "/api/v1/users/u1/duty-overrides", map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	cfg, err := db.ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	h.token, err = auth.SignToken([]byte(cfg.Auth.JWTSecret), "m1", "manager", time.Hour, time.Now())
	require.NoError(t, err)

	w = h.do(http.MethodPost, "/api/v1/users/u1/duty-overrides", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
