package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/middleware"
	"github.com/tripmart/marketplace-backend/internal/services"
	"github.com/tripmart/marketplace-backend/internal/utils"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}

// currentUserID returns the authenticated user's id. Routes using it sit
// behind AuthMiddleware.
func currentUserID(c *gin.Context) string {
	return middleware.MustGetUserContext(c).UserID.String()
}

// respondBindError reports a request body that failed binding
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid value for: " + strings.Join(fields, ", "),
			"fields":  fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Request body is not valid JSON",
	})
}

// respondValidationError reports a request that failed domain validation
func respondValidationError(c *gin.Context, err error) {
	body := gin.H{
		"error":   "validation_error",
		"message": err.Error(),
	}
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	c.JSON(http.StatusBadRequest, body)
}

// respondCouponError returns the coupon message verbatim
func respondCouponError(c *gin.Context, cerr *services.CouponError) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "invalid_coupon",
		Message: cerr.Message,
		Code:    cerr.Reason,
	})
}

func respondInternalError(c *gin.Context, operation string, err error) {
	logrus.WithError(err).WithField("operation", operation).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong, please try again",
	})
}
