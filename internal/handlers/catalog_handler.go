package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tripmart/marketplace-backend/internal/middleware"
	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/internal/services"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// ServiceCatalog loads bookable services
type ServiceCatalog interface {
	GetService(ctx context.Context, serviceType booking.ServiceType, id string) (*models.ServiceDetailResponse, error)
}

// AvailabilityChecker answers availability queries
type AvailabilityChecker interface {
	Check(ctx context.Context, q booking.AvailabilityQuery) (*booking.AvailabilityResult, error)
}

// CouponChecker validates coupon codes against a subtotal
type CouponChecker interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.CouponResult, error)
}

// CatalogHandler serves the public read endpoints the booking widget uses
type CatalogHandler struct {
	catalog      ServiceCatalog
	availability AvailabilityChecker
	coupons      CouponChecker
	audit        *services.AuditService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog ServiceCatalog, availability AvailabilityChecker, coupons CouponChecker, audit *services.AuditService) *CatalogHandler {
	return &CatalogHandler{
		catalog:      catalog,
		availability: availability,
		coupons:      coupons,
		audit:        audit,
	}
}

// GetService handles GET /api/v1/services/:type/:id
func (h *CatalogHandler) GetService(c *gin.Context) {
	serviceType := booking.ServiceType(c.Param("type"))

	detail, err := h.catalog.GetService(c.Request.Context(), serviceType, c.Param("id"))
	switch {
	case errors.Is(err, services.ErrInvalidServiceType):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_service_type", Message: err.Error()})
		return
	case errors.Is(err, services.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Service not found"})
		return
	case err != nil:
		respondInternalError(c, "get_service", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"service": detail})
}

// CheckAvailability handles GET /api/v1/availability
func (h *CatalogHandler) CheckAvailability(c *gin.Context) {
	q := booking.AvailabilityQuery{
		ServiceType: booking.ServiceType(c.Query("serviceType")),
		ServiceID:   c.Query("serviceId"),
		Start:       c.Query("start"),
		End:         c.Query("end"),
	}

	result, err := h.availability.Check(c.Request.Context(), q)
	switch {
	case errors.Is(err, services.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Service not found"})
		return
	case errors.Is(err, services.ErrInvalidAvailability),
		errors.Is(err, services.ErrInvalidServiceType),
		booking.IsValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_query", Message: err.Error()})
		return
	case err != nil:
		respondInternalError(c, "check_availability", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ValidateCoupon handles POST /api/v1/coupons/validate
func (h *CatalogHandler) ValidateCoupon(c *gin.Context) {
	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Subtotal.IsNegative() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "subtotal must not be negative"})
		return
	}

	result, err := h.coupons.Validate(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		var cerr *services.CouponError
		switch {
		case errors.As(err, &cerr):
			userID := ""
			if userCtx, ok := middleware.GetUserContext(c); ok {
				userID = userCtx.UserID.String()
			}
			h.audit.LogCouponRejected(c.Request.Context(), userID, req.Code, cerr, requestMeta(c))
			respondCouponError(c, cerr)
		case booking.IsValidationError(err):
			respondValidationError(c, err)
		default:
			respondInternalError(c, "validate_coupon", err)
		}
		return
	}

	c.JSON(http.StatusOK, models.ValidateCouponResponse{Coupon: *result})
}
