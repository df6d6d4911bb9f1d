package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/tripmart/marketplace-backend/internal/cache"
	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// loadTimeout bounds one shared availability load
const loadTimeout = 10 * time.Second

// ReservationStore reads the bookings that hold options of a service
type ReservationStore interface {
	ListReservations(ctx context.Context, serviceID string, window booking.DateRange) ([]booking.Reservation, error)
	ListBookedRanges(ctx context.Context, serviceID string, windowEnd, today time.Time, limit int) ([]booking.BookedRange, error)
}

// AvailabilityService is the source of truth for which options are free
// over a date window.
type AvailabilityService struct {
	services     ServiceStore
	reservations ReservationStore
	cache        cache.AvailabilityCache
	preview      int
	maxStayDays  int
	sfg          singleflight.Group
	now          func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService. cache may be
// nil, in which case every check reads the database. Windows longer than
// maxStayDays are rejected; zero disables the limit.
func NewAvailabilityService(services ServiceStore, reservations ReservationStore, c cache.AvailabilityCache, preview, maxStayDays int) *AvailabilityService {
	if preview < 0 {
		preview = booking.DefaultBookedRangePreview
	}
	return &AvailabilityService{
		services:     services,
		reservations: reservations,
		cache:        c,
		preview:      preview,
		maxStayDays:  maxStayDays,
		now:          time.Now,
	}
}

// Check returns the options bookable on every day of the query's window
func (s *AvailabilityService) Check(ctx context.Context, q booking.AvailabilityQuery) (*booking.AvailabilityResult, error) {
	q.ServiceID = strings.TrimSpace(q.ServiceID)
	if q.ServiceID == "" {
		return nil, ErrInvalidAvailability
	}
	if !q.ServiceType.IsValid() {
		return nil, ErrInvalidServiceType
	}
	window, err := booking.NewDateRange(q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if err := window.CheckLength(s.maxStayDays); err != nil {
		return nil, err
	}
	// Normalize so "2024-05-10" and "2024-05-10T00:00:00Z" share a cache entry
	q.Start = window.StartString()
	q.End = window.EndString()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, q)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logrus.WithError(err).WithField("service_id", q.ServiceID).Warn("Availability cache read failed, falling back to database")
		}
	}

	key := fmt.Sprintf("%s:%s:%s:%s", q.ServiceType, q.ServiceID, q.Start, q.End)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		// Shared by every waiter on key, so one caller's cancellation must not fail the rest
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		result, err := s.compute(loadCtx, q, window)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Set(loadCtx, q, result); err != nil {
				logrus.WithError(err).WithField("service_id", q.ServiceID).Warn("Availability cache write failed")
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*booking.AvailabilityResult), nil
}

func (s *AvailabilityService) compute(ctx context.Context, q booking.AvailabilityQuery, window booking.DateRange) (*booking.AvailabilityResult, error) {
	_, rows, err := loadService(ctx, s.services, q.ServiceType, q.ServiceID)
	if err != nil {
		return nil, err
	}
	options := models.BookableOptions(rows)

	reservations, err := s.reservations.ListReservations(ctx, q.ServiceID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	today := booking.DateRange{Start: s.now()}.FirstDay()
	ranges, err := s.reservations.ListBookedRanges(ctx, q.ServiceID, window.EndExclusive(), today, s.preview)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked ranges: %w", err)
	}

	return &booking.AvailabilityResult{
		AvailableOptionKeys: booking.FreeOptionKeys(options, reservations, window),
		BookedRanges:        ranges,
	}, nil
}

// Invalidate drops cached availability of a service after its bookings changed
func (s *AvailabilityService) Invalidate(ctx context.Context, serviceType booking.ServiceType, serviceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateService(ctx, serviceType, serviceID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"service_type": serviceType,
			"service_id":   serviceID,
		}).Warn("Failed to invalidate availability cache")
	}
}
