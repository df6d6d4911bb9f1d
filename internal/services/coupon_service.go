package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// Coupon rejection reasons
const (
	CouponInvalid      = "invalid_coupon"
	CouponNotStarted   = "coupon_not_started"
	CouponExpired      = "coupon_expired"
	CouponExhausted    = "coupon_exhausted"
	CouponBelowMinimum = "coupon_minimum_not_met"
)

// CouponError rejects a code. Message is shown to the user as is.
type CouponError struct {
	Reason  string
	Message string
}

func (e *CouponError) Error() string {
	return e.Message
}

// CouponLookup finds coupons by code
type CouponLookup interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// CouponService validates coupon codes against a subtotal
type CouponService struct {
	coupons CouponLookup
	now     func() time.Time
}

// NewCouponService creates a new CouponService
func NewCouponService(coupons CouponLookup) *CouponService {
	return &CouponService{
		coupons: coupons,
		now:     time.Now,
	}
}

// Validate checks code against subtotal and returns the discount it grants
func (s *CouponService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.CouponResult, error) {
	code = booking.NormalizeCouponCode(code)
	if code == "" {
		return nil, booking.ErrEmptyCouponCode
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}

	discount, err := CheckCoupon(coupon, subtotal, s.now())
	if err != nil {
		return nil, err
	}

	return &models.CouponResult{
		Code:            coupon.Code,
		AppliedDiscount: discount,
		DiscountType:    coupon.DiscountType,
		DiscountValue:   coupon.DiscountValue,
	}, nil
}

// CheckCoupon applies the eligibility rules in order: existence and active
// flag, validity window, usage limit, minimum subtotal. A nil coupon is an
// unknown code.
func CheckCoupon(coupon *models.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if coupon == nil || !coupon.IsActive {
		return decimal.Zero, &CouponError{Reason: CouponInvalid, Message: "Invalid coupon code"}
	}
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return decimal.Zero, &CouponError{Reason: CouponNotStarted, Message: "This coupon is not active yet"}
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return decimal.Zero, &CouponError{Reason: CouponExpired, Message: "This coupon has expired"}
	}
	if coupon.UsageExhausted() {
		return decimal.Zero, &CouponError{Reason: CouponExhausted, Message: "This coupon has reached its usage limit"}
	}
	if subtotal.LessThan(coupon.MinSubtotal) {
		return decimal.Zero, &CouponError{
			Reason:  CouponBelowMinimum,
			Message: fmt.Sprintf("A minimum subtotal of %s is required for this coupon", coupon.MinSubtotal.StringFixed(2)),
		}
	}
	return coupon.DiscountFor(subtotal), nil
}

// CouponRedeemer locks and redeems coupons inside a checkout transaction
type CouponRedeemer interface {
	LockByCode(ctx context.Context, code string) (*models.Coupon, error)
	Redeem(ctx context.Context, id string) (bool, error)
}

// redeemCoupon re-validates code against the server-side subtotal and
// counts one use. An empty code redeems nothing.
func redeemCoupon(ctx context.Context, coupons CouponRedeemer, code string, subtotal decimal.Decimal, now time.Time) (*models.Coupon, decimal.Decimal, error) {
	code = booking.NormalizeCouponCode(code)
	if code == "" {
		return nil, decimal.Zero, nil
	}

	coupon, err := coupons.LockByCode(ctx, code)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to look up coupon: %w", err)
	}

	discount, err := CheckCoupon(coupon, subtotal, now)
	if err != nil {
		return nil, decimal.Zero, err
	}

	ok, err := coupons.Redeem(ctx, coupon.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !ok {
		return nil, decimal.Zero, &CouponError{Reason: CouponExhausted, Message: "This coupon has reached its usage limit"}
	}
	return coupon, discount, nil
}
