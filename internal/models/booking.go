package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripmart/marketplace-backend/pkg/booking"
	"github.com/tripmart/marketplace-backend/pkg/validator"
)

var phoneValidator = validator.NewPhoneValidator()

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is a confirmed reservation of one or more service options over
// a date range.
type Booking struct {
	ID             string              `json:"id" db:"id"`
	UserID         string              `json:"userId" db:"user_id"`
	ServiceID      string              `json:"serviceId" db:"service_id"`
	ServiceType    booking.ServiceType `json:"serviceType" db:"service_type"`
	StartDate      time.Time           `json:"-" db:"start_date"`
	EndDate        time.Time           `json:"-" db:"end_date"`
	Guests         int                 `json:"guests" db:"guests"`
	CustomerName   string              `json:"customerName" db:"customer_name"`
	CustomerEmail  *string             `json:"customerEmail,omitempty" db:"customer_email"`
	CustomerPhone  string              `json:"customerPhone" db:"customer_phone"`
	Status         BookingStatus       `json:"status" db:"status"`
	CouponCode     *string             `json:"couponCode,omitempty" db:"coupon_code"`
	Pricing        BookingPricing      `json:"pricing" db:"pricing"`
	TotalAmount    decimal.Decimal     `json:"totalAmount" db:"total_amount"`
	Currency       string              `json:"currency" db:"currency"`
	Metadata       BookingMetadata     `json:"metadata,omitempty" db:"metadata"`
	IdempotencyKey *string             `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time           `json:"updatedAt" db:"updated_at"`

	Items []BookingItem `json:"items" db:"-"`
}

// Range returns the booked date range
func (b *Booking) Range() booking.DateRange {
	return booking.DateRange{Start: b.StartDate, End: b.EndDate}
}

// Confirmation is the wire form returned to the booking widget
func (b *Booking) Confirmation() booking.BookingConfirmation {
	conf := booking.BookingConfirmation{
		ID:          b.ID,
		Status:      string(b.Status),
		ServiceType: b.ServiceType,
		ServiceID:   b.ServiceID,
		StartDate:   b.StartDate.Format(booking.DateLayout),
		EndDate:     b.EndDate.Format(booking.DateLayout),
		Currency:    b.Currency,
		Pricing:     booking.PricingSnapshot(b.Pricing),
	}
	if b.CouponCode != nil {
		conf.CouponCode = *b.CouponCode
	}
	return conf
}

// BookingItem is one option line of a booking
type BookingItem struct {
	ID         string          `json:"-" db:"id"`
	BookingID  string          `json:"-" db:"booking_id"`
	OptionKey  string          `json:"optionKey" db:"option_key"`
	OptionName string          `json:"optionName" db:"option_name"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice" db:"unit_price"`
	UnitTax    decimal.Decimal `json:"unitTax" db:"unit_tax"`
	LineTotal  decimal.Decimal `json:"lineTotal" db:"line_total"`
}

// BookingPricing stores the server-computed pricing snapshot in JSONB
type BookingPricing booking.PricingSnapshot

// MarshalJSON keeps the snapshot's own field names
func (p BookingPricing) MarshalJSON() ([]byte, error) {
	return json.Marshal(booking.PricingSnapshot(p))
}

// UnmarshalJSON reads the snapshot's own field names
func (p *BookingPricing) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, (*booking.PricingSnapshot)(p))
}

func (p BookingPricing) Value() (driver.Value, error) {
	return json.Marshal(booking.PricingSnapshot(p))
}

func (p *BookingPricing) Scan(value interface{}) error {
	if value == nil {
		*p = BookingPricing{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for BookingPricing")
	}
	return json.Unmarshal(bytes, (*booking.PricingSnapshot)(p))
}

// BookingMetadata stores request context (device, ip, client hints) in JSONB
type BookingMetadata map[string]string

func (m BookingMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(m))
}

func (m *BookingMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for BookingMetadata")
	}
	return json.Unmarshal(bytes, (*map[string]string)(m))
}

// CreateBookingRequest is the body of POST /bookings
type CreateBookingRequest struct {
	ServiceType    booking.ServiceType     `json:"serviceType" binding:"required"`
	ServiceID      string                  `json:"serviceId" binding:"required,uuid"`
	StartDate      string                  `json:"startDate" binding:"required,isodate"`
	EndDate        string                  `json:"endDate" binding:"required,isodate"`
	Guests         int                     `json:"guests" binding:"omitempty,min=1,max=100"`
	Customer       booking.Customer        `json:"customer"`
	Items          []booking.LineSelection `json:"items" binding:"required,min=1,max=50"`
	Fees           *booking.BookingFees    `json:"fees,omitempty"`
	CouponCode     string                  `json:"couponCode" binding:"omitempty,max=50"`
	Metadata       map[string]string       `json:"metadata"`
	IdempotencyKey string                  `json:"idempotencyKey" binding:"omitempty,max=100"`
}

// maxMetadataEntries caps client supplied metadata stored with a booking
const maxMetadataEntries = 20

// Validate checks the fields binding tags cannot express
func (r *CreateBookingRequest) Validate(maxStayDays int) error {
	if !r.ServiceType.IsValid() {
		return errors.New("serviceType must be one of stay, tour, adventure, vehicle_rental")
	}
	dates, err := booking.NewDateRange(r.StartDate, r.EndDate)
	if err != nil {
		return err
	}
	if dates.End.Before(dates.Start) {
		return errors.New("endDate must not be before startDate")
	}
	if err := dates.CheckLength(maxStayDays); err != nil {
		return err
	}
	if err := r.Customer.Validate(); err != nil {
		return err
	}
	if _, err := phoneValidator.Validate(r.Customer.Phone); err != nil {
		return fmt.Errorf("customer phone: %w", err)
	}

	seen := make(map[string]bool, len(r.Items))
	for _, item := range r.Items {
		key := strings.TrimSpace(item.OptionKey)
		if key == "" {
			return errors.New("every item needs an optionKey")
		}
		if item.Quantity <= 0 {
			return errors.New("item quantity must be at least 1")
		}
		if seen[key] {
			return errors.New("duplicate optionKey " + key)
		}
		seen[key] = true
	}

	if len(r.Metadata) > maxMetadataEntries {
		return errors.New("too many metadata entries")
	}
	return nil
}

// BookingResponse wraps a created or fetched booking
type BookingResponse struct {
	Booking booking.BookingConfirmation `json:"booking"`
}
