package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits, spaces, dashes, dots, parentheses and a leading +")

	// ErrInvalidLength indicates the digit count is outside what any numbering plan allows
	ErrInvalidLength = errors.New("phone number must have between 7 and 15 digits")

	// ErrInvalidCountryCode indicates an international number starting with 0
	ErrInvalidCountryCode = errors.New("country code cannot start with 0")
)

var (
	separators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

// PhoneValidator validates contact numbers on bookings and delivery addresses
type PhoneValidator struct {
	minDigits int
	maxDigits int
}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{minDigits: 7, maxDigits: 15}
}

// Validate checks a contact number in local ("077 123 4567") or
// international ("+94 77 123 4567", "0094...") form and returns it with
// separators removed. International numbers keep their leading +.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	international := strings.HasPrefix(sanitized, "+")
	digits := strings.TrimPrefix(sanitized, "+")

	if !digitsOnly.MatchString(digits) {
		return "", ErrInvalidFormat
	}
	if len(digits) < v.minDigits || len(digits) > v.maxDigits {
		return "", ErrInvalidLength
	}
	if international && digits[0] == '0' {
		return "", ErrInvalidCountryCode
	}

	return sanitized, nil
}

// Sanitize removes separators and rewrites a 00 international prefix as +
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = separators.Replace(strings.TrimSpace(phone))
	if strings.HasPrefix(phone, "00") && len(phone) > 2 {
		phone = "+" + phone[2:]
	}
	return phone
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
