package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// RegisterValidators adds the custom binding rules used by request models
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("isodate", isoDate); err != nil {
		return fmt.Errorf("failed to register isodate: %w", err)
	}
	return nil
}

// isoDate accepts YYYY-MM-DD and RFC 3339 timestamps
func isoDate(fl validator.FieldLevel) bool {
	_, ok := booking.ParseDate(fl.Field().String())
	return ok
}
