package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrInvalidServiceType  = errors.New("serviceType must be one of stay, tour, adventure, vehicle_rental")
	ErrInvalidAvailability = errors.New("serviceType, serviceId, start and end are required")
)

// ServiceStore reads bookable services and their options
type ServiceStore interface {
	GetByID(ctx context.Context, id string) (*models.Service, error)
	ListOptions(ctx context.Context, serviceID string) ([]models.ServiceOption, error)
}

// CatalogService serves service details to the booking widget
type CatalogService struct {
	services ServiceStore
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(services ServiceStore) *CatalogService {
	return &CatalogService{services: services}
}

// GetService returns a service and its options. A service whose type does
// not match the requested one is reported as not found.
func (s *CatalogService) GetService(ctx context.Context, serviceType booking.ServiceType, id string) (*models.ServiceDetailResponse, error) {
	svc, options, err := loadService(ctx, s.services, serviceType, id)
	if err != nil {
		return nil, err
	}

	detail := models.NewServiceDetailResponse(svc, options)
	return &detail, nil
}

func loadService(ctx context.Context, store ServiceStore, serviceType booking.ServiceType, id string) (*models.Service, []models.ServiceOption, error) {
	if !serviceType.IsValid() {
		return nil, nil, ErrInvalidServiceType
	}

	svc, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load service: %w", err)
	}
	if svc == nil || svc.Type != serviceType {
		return nil, nil, ErrServiceNotFound
	}

	options, err := store.ListOptions(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load options: %w", err)
	}
	return svc, options, nil
}
