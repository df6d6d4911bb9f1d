package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []struct {
		name     string
		input    string
		expected string
	}{
		{"local", "0771234567", "0771234567"},
		{"local with spaces", "077 123 4567", "0771234567"},
		{"local with dashes", "077-123-4567", "0771234567"},
		{"local with dots", "077.123.4567", "0771234567"},
		{"local with parentheses", "(077) 123 4567", "0771234567"},
		{"international", "+94 77 123 4567", "+94771234567"},
		{"double zero prefix", "0044 20 7946 0958", "+442079460958"},
		{"us", "+1 (415) 555-2671", "+14155552671"},
		{"surrounding spaces", "  0771234567 ", "0771234567"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	invalidNumbers := []struct {
		name        string
		input       string
		expectedErr error
	}{
		{"empty", "", ErrEmptyPhone},
		{"blank", "   ", ErrEmptyPhone},
		{"too short", "12345", ErrInvalidLength},
		{"too long", "+1234567890123456", ErrInvalidLength},
		{"letters", "077123456a", ErrInvalidFormat},
		{"plus in the middle", "077+1234567", ErrInvalidFormat},
		{"zero country code", "+0771234567", ErrInvalidCountryCode},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.False(t, validator.IsValid(tc.input))
		})
	}
}
