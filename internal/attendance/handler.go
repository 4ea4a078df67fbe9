package attendance

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/clock"
	"ATLAS-backend/internal/platform/httpx"
)

type Handler struct {
	svc   *Service
	clock clock.Clock
}

func RegisterRoutes(r gin.IRoutes, svc *Service, clk clock.Clock) {
	h := &Handler{svc: svc, clock: clk}

	// 自分の出退勤
	r.POST("/attendance/clock-in", h.ClockIn)
	r.POST("/attendance/clock-out", h.ClockOut)
	r.GET("/attendance/status", h.Status)

	// 本人 or 管理ロール
	r.GET("/users/:userId/attendance", h.List)
	r.GET("/users/:userId/duty-windows", h.Windows)

	// 管理ロールのみ。Service 側でも判定する
	r.POST("/users/:userId/duty-overrides", auth.RequireManager(), h.CreateOverride)
}

// POST /attendance/clock-in
func (h *Handler) ClockIn(c *gin.Context) {
	id := auth.MustIdentity(c)
	v, created, err := h.svc.ClockIn(c.Request.Context(), id.UserID, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, ClockInResponse{Attendance: v, Created: created})
}

// POST /attendance/clock-out
func (h *Handler) ClockOut(c *gin.Context) {
	id := auth.MustIdentity(c)
	v, err := h.svc.ClockOut(c.Request.Context(), id.UserID, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// GET /attendance/status
func (h *Handler) Status(c *gin.Context) {
	id := auth.MustIdentity(c)
	now := h.clock.Now()
	v, err := h.svc.Status(c.Request.Context(), id.UserID, now)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Attendance: v, ServerNow: now.UTC()})
}

// GET /users/:userId/attendance?from=&to=&limit=&offset=
func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	for name, dst := range map[string]**dutycal.DateKey{"from": &q.From, "to": &q.To} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		k, err := dutycal.ParseDateKey(v)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		*dst = &k
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Offset = n
		}
	}

	q.clamp()

	items, total, err := h.svc.List(c.Request.Context(), auth.MustIdentity(c), c.Param("userId"), q, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset})
}

// GET /users/:userId/duty-windows?date=YYYY-MM-DD
func (h *Handler) Windows(c *gin.Context) {
	now := h.clock.Now()
	date := h.svc.Calendar().DutyDateOf(now)
	if v := c.Query("date"); v != "" {
		k, err := dutycal.ParseDateKey(v)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		date = k
	}

	userID := c.Param("userId")
	ws, err := h.svc.Resolve(c.Request.Context(), auth.MustIdentity(c), userID, date, now)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	if ws == nil {
		ws = []Window{}
	}
	c.JSON(http.StatusOK, WindowsResponse{UserID: userID, DutyDate: date, Windows: ws})
}

// POST /users/:userId/duty-overrides
func (h *Handler) CreateOverride(c *gin.Context) {
	var req CreateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	res, err := h.svc.CreateOverride(c.Request.Context(), auth.MustIdentity(c), c.Param("userId"), req, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
