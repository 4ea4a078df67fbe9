package timeline

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
	cal   dutycal.Calendar
	clock clock.Clock
}

func RegisterRoutes(r gin.IRoutes, svc *Service, cal dutycal.Calendar, clk clock.Clock) {
	h := &Handler{svc: svc, cal: cal, clock: clk}

	r.GET("/users/:userId/timeline", h.Get)
}

// GET /users/:userId/timeline?date=YYYY-MM-DD （省略時は今日）
func (h *Handler) Get(c *gin.Context) {
	now := h.clock.Now()
	date := h.cal.DutyDateOf(now)
	if raw := c.Query("date"); raw != "" {
		k, err := dutycal.ParseDateKey(raw)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		date = k
	}

	id := auth.MustIdentity(c)
	tl, err := h.svc.Build(c.Request.Context(), id, c.Param("userId"), date, now)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}
