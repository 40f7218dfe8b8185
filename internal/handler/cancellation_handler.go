package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/domain/cancellation"
	"github.com/trailpaws/service-reservation/internal/middleware"
	"github.com/trailpaws/service-reservation/internal/response"
)

// CancellationHandler handles HTTP requests for the cancellation workflow.
type CancellationHandler struct {
	service *application.CancellationService
}

// NewCancellationHandler creates a new CancellationHandler.
func NewCancellationHandler(service *application.CancellationService) *CancellationHandler {
	return &CancellationHandler{service: service}
}

// RegisterRoutes registers customer and admin cancellation routes.
func (h *CancellationHandler) RegisterRoutes(r *gin.RouterGroup, jwtSecret string) {
	authMW := middleware.Auth(jwtSecret)

	r.POST("/api/v1/bookings/:id/cancellation", authMW, h.RequestCancellation)

	admin := r.Group("/api/v1/admin/cancellations")
	admin.Use(authMW, middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("", h.ListRequests)
		admin.POST("/:id/decision", h.Decide)
	}
}

type requestCancellationBody struct {
	Reason string `json:"reason" binding:"required"`
}

// RequestCancellation handles POST /api/v1/bookings/:id/cancellation.
func (h *CancellationHandler) RequestCancellation(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}

	var body requestCancellationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	requestedBy, ok := middleware.UserIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.RequestCancellation(c.Request.Context(), bookingID, body.Reason, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListRequests handles GET /api/v1/admin/cancellations. An optional status
// query filters the queue; the default view is the pending backlog.
func (h *CancellationHandler) ListRequests(c *gin.Context) {
	status, err := cancellation.ParseStatus(c.DefaultQuery("status", string(cancellation.StatusPending)))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, limit := parsePagination(c)
	requests, total, err := h.service.ListRequests(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, requests, total, page, limit)
}

type decideBody struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// Decide handles POST /api/v1/admin/cancellations/:id/decision.
func (h *CancellationHandler) Decide(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}

	var body decideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	action := cancellation.Action(body.Action)
	if !action.IsValid() {
		response.BadRequest(c, "action must be approve or reject")
		return
	}

	decidedBy, ok := middleware.UserIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.Decide(c.Request.Context(), requestID, action, decidedBy, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
