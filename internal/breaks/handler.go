package breaks

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

	r.POST("/tasks/:id/breaks", h.Start)
	r.POST("/tasks/:id/breaks/end", h.End)
}

// POST /tasks/:id/breaks
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	id := auth.MustIdentity(c)
	res, err := h.svc.StartBreak(c.Request.Context(), id.UserID, c.Param("id"), req, h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /tasks/:id/breaks/end
func (h *Handler) End(c *gin.Context) {
	id := auth.MustIdentity(c)
	res, err := h.svc.EndBreak(c.Request.Context(), id.UserID, c.Param("id"), h.clock.Now())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
