package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoOptionsSelected   = errors.New("select at least one option to continue")
	ErrSoldOut             = errors.New("sold out for the selected dates")
	ErrAvailabilityPending = errors.New("availability is still being checked")
	ErrAvailabilityUnknown = errors.New("could not confirm availability, please refresh and try again")
	ErrAvailabilityTimeout = errors.New("availability check timed out, please try again")
	ErrEmptyCouponCode     = errors.New("enter a coupon code")
	ErrBookingConfirmed    = errors.New("booking already confirmed")
	ErrSubmitInProgress    = errors.New("booking is already being submitted")
	ErrNoProductsInCart    = errors.New("cart has no products to check out")
)

// ValidationError lists the form fields that failed local validation
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Has reports whether field is among the failed fields
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err is a local validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrNoOptionsSelected) ||
		errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrEmptyCouponCode) ||
		errors.Is(err, ErrMissingDate) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrStayTooLong) ||
		errors.Is(err, ErrNoProductsInCart)
}
