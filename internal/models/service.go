package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// Service is a bookable listing: a stay, tour, adventure or vehicle rental
type Service struct {
	ID          string              `json:"id" db:"id"`
	Type        booking.ServiceType `json:"type" db:"service_type"`
	Name        string              `json:"name" db:"name"`
	Description string              `json:"description" db:"description"`
	Location    string              `json:"location" db:"location"`
	Currency    string              `json:"currency" db:"currency"`
	IsActive    bool                `json:"-" db:"is_active"`
	CreatedAt   time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time           `json:"updatedAt" db:"updated_at"`
}

// ServiceOption is one bookable configuration of a service (a room type,
// a tour package, an adventure slot, a vehicle class).
type ServiceOption struct {
	ID        string              `db:"id"`
	ServiceID string              `db:"service_id"`
	OptionKey string              `db:"option_key"`
	Name      string              `db:"name"`
	Price     decimal.Decimal     `db:"price"`
	Tax       decimal.NullDecimal `db:"tax"`
	Available int                 `db:"available"`
	Features  pq.StringArray      `db:"features"`
	SortOrder int                 `db:"sort_order"`
}

// Bookable converts the row to the pricing model
func (o ServiceOption) Bookable() booking.BookableOption {
	opt := booking.BookableOption{
		ID:        o.OptionKey,
		Name:      o.Name,
		Price:     o.Price,
		Available: o.Available,
		Features:  []string(o.Features),
	}
	if o.Tax.Valid {
		tax := o.Tax.Decimal
		opt.Tax = &tax
	}
	return opt
}

// BookableOptions converts a list of option rows
func BookableOptions(rows []ServiceOption) []booking.BookableOption {
	options := make([]booking.BookableOption, len(rows))
	for i, row := range rows {
		options[i] = row.Bookable()
	}
	return options
}

// ServiceDetailResponse is the public detail of a service
type ServiceDetailResponse struct {
	ID          string                   `json:"id"`
	Type        booking.ServiceType      `json:"type"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Location    string                   `json:"location"`
	Currency    string                   `json:"currency"`
	OptionLabel string                   `json:"optionLabel"`
	Options     []booking.BookableOption `json:"options"`
}

// NewServiceDetailResponse builds the response for a service and its options
func NewServiceDetailResponse(svc *Service, options []ServiceOption) ServiceDetailResponse {
	return ServiceDetailResponse{
		ID:          svc.ID,
		Type:        svc.Type,
		Name:        svc.Name,
		Description: svc.Description,
		Location:    svc.Location,
		Currency:    svc.Currency,
		OptionLabel: svc.Type.OptionLabel(),
		Options:     BookableOptions(options),
	}
}
