package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/middleware"
	"github.com/trailpaws/service-reservation/internal/response"
)

// SlotHandler handles HTTP requests for slot inventory.
type SlotHandler struct {
	service *application.SlotService
}

// NewSlotHandler creates a new SlotHandler.
func NewSlotHandler(service *application.SlotService) *SlotHandler {
	return &SlotHandler{service: service}
}

// RegisterRoutes registers slot routes. Reading availability is public so the
// booking page can render remaining capacity; creation is admin-only.
func (h *SlotHandler) RegisterRoutes(r *gin.RouterGroup, jwtSecret string) {
	r.GET("/api/v1/slots/:id", h.GetSlot)

	admin := r.Group("/api/v1/admin/slots")
	admin.Use(middleware.Auth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("", h.CreateSlot)
	}
}

// CreateSlot handles POST /api/v1/admin/slots.
func (h *SlotHandler) CreateSlot(c *gin.Context) {
	var req application.CreateSlotInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetSlot handles GET /api/v1/slots/:id.
func (h *SlotHandler) GetSlot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid slot id")
		return
	}

	result, err := h.service.GetSlot(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
