package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/httpx"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/tasks", h.Create)
	r.PATCH("/tasks/:id/status", h.UpdateStatus)
	r.GET("/users/:userId/tasks", h.List)
}

// POST /tasks
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	res, err := h.svc.Create(c.Request.Context(), auth.MustIdentity(c), req)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.Header("Location", "/tasks/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

// PATCH /tasks/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondBindError(c, err)
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), auth.MustIdentity(c), c.Param("id"), req.Status)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /users/:userId/tasks
func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.ListFor(c.Request.Context(), auth.MustIdentity(c), c.Param("userId"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res})
}
