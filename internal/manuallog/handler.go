package manuallog

import (
	"net/http"

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

	r.GET("/manual-logs", h.List)
	r.POST("/manual-logs", h.Create)
	r.PUT("/manual-logs/:id", h.Update)
	r.POST("/manual-logs/:id/stop", h.Stop)
	r.DELETE("/manual-logs/:id", h.Delete)
}

type listQuery struct {
	Date   string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	UserID string `form:"user_id"`
}

// GET /manual-logs?date=YYYY-MM-DD&user_id=
func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	id := auth.MustIdentity(c)
	userID := q.UserID
	if userID == "" {
		userID = id.UserID
	}
	date := h.svc.cal.DutyDateOf(h.clock.Now())
	if q.Date != "" {
		k, err := dutycal.ParseDateKey(q.Date)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		date = k
	}

	res, err := h.svc.ListByDate(c.Request.Context(), id, userID, date)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "items": res})
}

// POST /manual-logs
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	id := auth.MustIdentity(c)
	res, err := h.svc.Create(c.Request.Context(), id.UserID, in, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// PUT /manual-logs/:id
func (h *Handler) Update(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	id := auth.MustIdentity(c)
	res, err := h.svc.Update(c.Request.Context(), id.UserID, c.Param("id"), in, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /manual-logs/:id/stop
func (h *Handler) Stop(c *gin.Context) {
	id := auth.MustIdentity(c)
	res, err := h.svc.Stop(c.Request.Context(), id.UserID, c.Param("id"), h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /manual-logs/:id
func (h *Handler) Delete(c *gin.Context) {
	id := auth.MustIdentity(c)
	if err := h.svc.Delete(c.Request.Context(), id.UserID, c.Param("id"), h.clock.Now()); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
