package cache

import (
	"context"
	"errors"

	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// AvailabilityCache stores computed availability per service and date window
type AvailabilityCache interface {
	Get(ctx context.Context, q booking.AvailabilityQuery) (*booking.AvailabilityResult, error)
	Set(ctx context.Context, q booking.AvailabilityQuery, result *booking.AvailabilityResult) error
	InvalidateService(ctx context.Context, serviceType booking.ServiceType, serviceID string) error
}

var ErrCacheMiss = errors.New("cache miss")
