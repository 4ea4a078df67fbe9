package worksession

import (
	"net/http"

	"github.com/gin-gonic/gin"

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

	r.POST("/tasks/:id/start", h.Start)
	r.POST("/sessions/stop", h.Stop)
}

// POST /tasks/:id/start
func (h *Handler) Start(c *gin.Context) {
	id := auth.MustIdentity(c)
	res, err := h.svc.StartTask(c.Request.Context(), id.UserID, c.Param("id"), h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /sessions/stop
func (h *Handler) Stop(c *gin.Context) {
	id := auth.MustIdentity(c)
	res, err := h.svc.StopTask(c.Request.Context(), id.UserID, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
