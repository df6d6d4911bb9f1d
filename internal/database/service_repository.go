package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tripmart/marketplace-backend/internal/models"
)

// ServiceRepository handles database operations for bookable services
type ServiceRepository struct {
	db Querier
}

// NewServiceRepository creates a new ServiceRepository
func NewServiceRepository(db Querier) *ServiceRepository {
	return &ServiceRepository{db: db}
}

const serviceColumns = `id, service_type, name, description, location, currency, is_active, created_at, updated_at`

// GetByID returns an active service, or nil when none exists
func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1 AND is_active = TRUE`

	var svc models.Service
	err := r.db.GetContext(ctx, &svc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

// LockByID loads an active service and holds a row lock on it until the
// surrounding transaction ends. Concurrent bookings for the same service
// serialize here.
func (r *ServiceRepository) LockByID(ctx context.Context, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1 AND is_active = TRUE FOR UPDATE`

	var svc models.Service
	err := r.db.GetContext(ctx, &svc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock service: %w", err)
	}
	return &svc, nil
}

// ListOptions returns a service's options in display order
func (r *ServiceRepository) ListOptions(ctx context.Context, serviceID string) ([]models.ServiceOption, error) {
	query := `
		SELECT id, service_id, option_key, name, price, tax, available, features, sort_order
		FROM service_options
		WHERE service_id = $1
		ORDER BY sort_order, name`

	options := []models.ServiceOption{}
	if err := r.db.SelectContext(ctx, &options, query, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list service options: %w", err)
	}
	return options, nil
}
