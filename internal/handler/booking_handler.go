// Package handler exposes the HTTP surface of the reservation service.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/middleware"
	"github.com/trailpaws/service-reservation/internal/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtSecret string) {
	authMW := middleware.Auth(jwtSecret)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListMyBookings)
		bookings.GET("/:id", h.GetBooking)
	}

	// Lookup by order number is public: the order number is the customer's
	// reference from the confirmation email.
	r.GET("/api/v1/orders/:number", h.GetByOrderNumber)
}

// CreateBooking handles POST /api/v1/bookings. The client supplies the
// idempotency key; retrying with the same key replays the first outcome.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req application.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetByOrderNumber handles GET /api/v1/orders/:number.
func (h *BookingHandler) GetByOrderNumber(c *gin.Context) {
	result, err := h.service.GetBookingByOrderNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListMyBookings handles GET /api/v1/bookings. The authenticated identity is
// the customer email; customers only ever see their own bookings here.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	email, ok := middleware.UserIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePagination(c)
	bookings, total, err := h.service.GetCustomerBookings(c.Request.Context(), email, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
