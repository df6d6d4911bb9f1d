package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType says how a coupon's value is applied
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a discount code
type Coupon struct {
	ID            string              `json:"id" db:"id"`
	Code          string              `json:"code" db:"code"`
	DiscountType  DiscountType        `json:"discountType" db:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discountValue" db:"discount_value"`
	MinSubtotal   decimal.Decimal     `json:"minSubtotal" db:"min_subtotal"`
	MaxDiscount   decimal.NullDecimal `json:"maxDiscount" db:"max_discount"`
	ValidFrom     *time.Time          `json:"validFrom,omitempty" db:"valid_from"`
	ValidUntil    *time.Time          `json:"validUntil,omitempty" db:"valid_until"`
	MaxUses       *int                `json:"maxUses,omitempty" db:"max_uses"`
	Uses          int                 `json:"uses" db:"uses"`
	IsActive      bool                `json:"isActive" db:"is_active"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" db:"updated_at"`
}

// DiscountFor computes the discount on subtotal, clamped to [0, subtotal]
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaxDiscount.Valid && amount.GreaterThan(c.MaxDiscount.Decimal) {
		amount = c.MaxDiscount.Decimal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// UsageExhausted reports whether the coupon has no redemptions left
func (c *Coupon) UsageExhausted() bool {
	return c.MaxUses != nil && c.Uses >= *c.MaxUses
}

// ValidateCouponRequest is the body of POST /coupons/validate
type ValidateCouponRequest struct {
	Code     string          `json:"code" binding:"required,max=50"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CouponResult is the validated coupon returned to clients
type CouponResult struct {
	Code            string          `json:"code"`
	AppliedDiscount decimal.Decimal `json:"appliedDiscount"`
	DiscountType    DiscountType    `json:"discountType"`
	DiscountValue   decimal.Decimal `json:"discountValue"`
}

// ValidateCouponResponse wraps a validated coupon
type ValidateCouponResponse struct {
	Coupon CouponResult `json:"coupon"`
}
