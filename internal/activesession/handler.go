package activesession

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/clock"
	"ATLAS-backend/internal/platform/httpx"
)

type Handler struct {
	tracker *Tracker
	clock   clock.Clock
}

func RegisterRoutes(r gin.IRoutes, tracker *Tracker, clk clock.Clock) {
	h := &Handler{tracker: tracker, clock: clk}

	r.GET("/sessions/active", h.Active)
}

// GET /sessions/active
func (h *Handler) Active(c *gin.Context) {
	id := auth.MustIdentity(c)
	snap, err := h.tracker.Active(c.Request.Context(), id.UserID, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
