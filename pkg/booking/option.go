package booking

import (
	"github.com/shopspring/decimal"
)

// ServiceType labels a bookable service. It selects field names and copy,
// never pricing or availability behaviour.
type ServiceType string

const (
	ServiceStay          ServiceType = "stay"
	ServiceTour          ServiceType = "tour"
	ServiceAdventure     ServiceType = "adventure"
	ServiceVehicleRental ServiceType = "vehicle_rental"
)

// IsValid reports whether t is a known bookable service type
func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceStay, ServiceTour, ServiceAdventure, ServiceVehicleRental:
		return true
	}
	return false
}

// OptionLabel is the user-facing noun for an option of this service type
func (t ServiceType) OptionLabel() string {
	switch t {
	case ServiceStay:
		return "room"
	case ServiceTour:
		return "package"
	case ServiceAdventure:
		return "slot"
	case ServiceVehicleRental:
		return "vehicle"
	}
	return "option"
}

// BookableOption is one purchasable configuration of a service
type BookableOption struct {
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	Tax       *decimal.Decimal `json:"tax,omitempty"`
	Available int              `json:"available"`
	Features  []string         `json:"features,omitempty"`
}

// Key identifies the option in a ledger, falling back to the name
func (o BookableOption) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return o.Name
}

// TaxOrZero returns the per-day tax, zero when unset
func (o BookableOption) TaxOrZero() decimal.Decimal {
	if o.Tax == nil {
		return decimal.Zero
	}
	return *o.Tax
}

// Capacity returns Available clamped at zero
func (o BookableOption) Capacity() int {
	if o.Available < 0 {
		return 0
	}
	return o.Available
}

// FindOption looks an option up by key
func FindOption(options []BookableOption, key string) (BookableOption, bool) {
	for _, opt := range options {
		if opt.Key() == key {
			return opt, true
		}
	}
	return BookableOption{}, false
}
