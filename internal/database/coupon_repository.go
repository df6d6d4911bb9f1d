package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tripmart/marketplace-backend/internal/models"
)

// CouponRepository handles database operations for coupons
type CouponRepository struct {
	db Querier
}

// NewCouponRepository creates a new CouponRepository
func NewCouponRepository(db Querier) *CouponRepository {
	return &CouponRepository{db: db}
}

const couponColumns = `id, code, discount_type, discount_value, min_subtotal, max_discount,
	valid_from, valid_until, max_uses, uses, is_active, created_at, updated_at`

// GetByCode returns the coupon with an exact (upper-case) code, or nil
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	return r.getOne(ctx, query, code)
}

// LockByCode is GetByCode holding a row lock for the current transaction
func (r *CouponRepository) LockByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`
	return r.getOne(ctx, query, code)
}

func (r *CouponRepository) getOne(ctx context.Context, query string, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.GetContext(ctx, &coupon, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &coupon, nil
}

// Redeem counts one use of a coupon. Returns false when the usage limit
// was reached in the meantime.
func (r *CouponRepository) Redeem(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE coupons
		SET uses = uses + 1, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND (max_uses IS NULL OR uses < max_uses)`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to redeem coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeactivateExpired switches off every active coupon whose window closed before now
func (r *CouponRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE coupons
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active = TRUE AND valid_until IS NOT NULL AND valid_until < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired coupons: %w", err)
	}
	return result.RowsAffected()
}
