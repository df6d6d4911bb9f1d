package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/internal/services"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// BookingManager creates and manages a user's bookings
type BookingManager interface {
	CreateBooking(ctx context.Context, userID string, req *models.CreateBookingRequest, meta services.RequestMeta) (*models.Booking, bool, error)
	GetBooking(ctx context.Context, userID, id string) (*models.Booking, error)
	CancelBooking(ctx context.Context, userID, id string, meta services.RequestMeta) (*models.Booking, error)
}

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookings    BookingManager
	audit       *services.AuditService
	maxStayDays int
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingManager, audit *services.AuditService, maxStayDays int) *BookingHandler {
	return &BookingHandler{bookings: bookings, audit: audit, maxStayDays: maxStayDays}
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := req.Validate(h.maxStayDays); err != nil {
		respondValidationError(c, err)
		return
	}

	userID := currentUserID(c)
	meta := requestMeta(c)

	b, created, err := h.bookings.CreateBooking(c.Request.Context(), userID, &req, meta)
	if err != nil {
		var unavailable *services.UnavailableError
		var cerr *services.CouponError
		switch {
		case errors.As(err, &unavailable):
			c.JSON(http.StatusConflict, gin.H{
				"error":      "options_unavailable",
				"message":    "Some selected options are no longer available for these dates",
				"optionKeys": unavailable.OptionKeys,
			})
		case errors.As(err, &cerr):
			h.audit.LogCouponRejected(c.Request.Context(), userID, req.CouponCode, cerr, meta)
			respondCouponError(c, cerr)
		case errors.Is(err, services.ErrServiceNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Service not found"})
		case errors.Is(err, services.ErrUnknownOption):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown_option", Message: err.Error()})
		case booking.IsValidationError(err):
			respondValidationError(c, err)
		default:
			respondInternalError(c, "create_booking", err)
		}
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, models.BookingResponse{Booking: b.Confirmation()})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, err := h.bookings.GetBooking(c.Request.Context(), currentUserID(c), c.Param("id"))
	if errors.Is(err, services.ErrBookingNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Booking not found"})
		return
	}
	if err != nil {
		respondInternalError(c, "get_booking", err)
		return
	}

	c.JSON(http.StatusOK, models.BookingResponse{Booking: b.Confirmation()})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	b, err := h.bookings.CancelBooking(c.Request.Context(), currentUserID(c), c.Param("id"), requestMeta(c))
	switch {
	case errors.Is(err, services.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Booking not found"})
		return
	case errors.Is(err, services.ErrBookingNotCancelable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "not_cancelable", Message: "Only confirmed bookings can be cancelled"})
		return
	case err != nil:
		respondInternalError(c, "cancel_booking", err)
		return
	}

	c.JSON(http.StatusOK, models.BookingResponse{Booking: b.Confirmation()})
}
