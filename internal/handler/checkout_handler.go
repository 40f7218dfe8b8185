package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/response"
)

// CheckoutHandler handles HTTP requests for opening payment sessions.
type CheckoutHandler struct {
	service *application.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(service *application.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// RegisterRoutes registers checkout routes. The endpoints are public:
// visitors open a payment session before they have any account or token, and
// the provider's return page only carries the session id.
func (h *CheckoutHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/api/v1/checkout", h.StartCheckout)
	r.GET("/api/v1/checkout/:session_id", h.GetCheckoutStatus)
}

// StartCheckout handles POST /api/v1/checkout.
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	var req application.StartCheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.StartCheckout(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetCheckoutStatus handles GET /api/v1/checkout/:session_id.
func (h *CheckoutHandler) GetCheckoutStatus(c *gin.Context) {
	result, err := h.service.GetCheckoutStatus(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
