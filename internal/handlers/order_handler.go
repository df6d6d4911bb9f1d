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

// OrderPlacer places and loads a user's product orders
type OrderPlacer interface {
	CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest, meta services.RequestMeta) (*models.Order, bool, error)
	GetOrder(ctx context.Context, userID, id string) (*models.Order, error)
}

// OrderHandler handles order HTTP requests
type OrderHandler struct {
	orders OrderPlacer
	audit  *services.AuditService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderPlacer, audit *services.AuditService) *OrderHandler {
	return &OrderHandler{orders: orders, audit: audit}
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		if errors.Is(err, models.ErrServiceInOrder) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "service_in_order", Message: err.Error()})
			return
		}
		respondValidationError(c, err)
		return
	}

	userID := currentUserID(c)
	meta := requestMeta(c)

	o, created, err := h.orders.CreateOrder(c.Request.Context(), userID, &req, meta)
	if err != nil {
		var stockErr *services.StockError
		var cerr *services.CouponError
		switch {
		case errors.As(err, &stockErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":     "insufficient_stock",
				"message":   stockErr.Error(),
				"productId": stockErr.ProductID,
				"available": stockErr.Available,
			})
		case errors.As(err, &cerr):
			h.audit.LogCouponRejected(c.Request.Context(), userID, req.CouponCode, cerr, meta)
			respondCouponError(c, cerr)
		case errors.Is(err, services.ErrProductNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
		case booking.IsValidationError(err):
			respondValidationError(c, err)
		default:
			respondInternalError(c, "create_order", err)
		}
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, models.NewOrderResponse(o))
}

// GetOrder handles GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, err := h.orders.GetOrder(c.Request.Context(), currentUserID(c), c.Param("id"))
	if errors.Is(err, services.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Order not found"})
		return
	}
	if err != nil {
		respondInternalError(c, "get_order", err)
		return
	}

	c.JSON(http.StatusOK, models.NewOrderResponse(o))
}
