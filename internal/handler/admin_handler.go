package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/middleware"
	"github.com/trailpaws/service-reservation/internal/response"
)

// AdminHandler handles admin HTTP requests for booking oversight.
type AdminHandler struct {
	bookings *application.BookingService
	sweeper  *application.SweepService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService, sweeper *application.SweepService) *AdminHandler {
	return &AdminHandler{bookings: bookings, sweeper: sweeper}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtSecret string) {
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.Auth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.POST("/sweep", h.RunSweep)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)
	bookings, total, err := h.bookings.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// RunSweep handles POST /api/v1/admin/sweep. The scheduler runs the same
// sweep on a timer; this endpoint exists for manual runs and backfills.
// An optional as_of query (RFC 3339) overrides the cutoff instant.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "as_of must be an RFC 3339 timestamp")
			return
		}
		asOf = parsed
	}

	completed, err := h.sweeper.CompleteExpiredBookings(c.Request.Context(), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"completed": completed})
}
