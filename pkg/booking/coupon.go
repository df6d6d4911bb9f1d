package booking

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Coupon is a validated code and the discount the server computed for it
type Coupon struct {
	Code            string          `json:"code"`
	AppliedDiscount decimal.Decimal `json:"appliedDiscount"`
}

// CouponValidator checks a code against a pre-fee subtotal remotely
type CouponValidator interface {
	ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (Coupon, error)
}

// NormalizeCouponCode trims and upper-cases a code
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponResolver holds the coupon input and the applied coupon for one
// booking attempt. The applied discount is not recomputed when the
// selection changes; Stale reports when that has happened.
type CouponResolver struct {
	mu        sync.Mutex
	validator CouponValidator
	input     string
	applied   *Coupon
	basis     decimal.Decimal
	err       error
}

// NewCouponResolver creates a resolver backed by validator
func NewCouponResolver(validator CouponValidator) *CouponResolver {
	return &CouponResolver{validator: validator}
}

// SetInput records what the user typed
func (r *CouponResolver) SetInput(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = code
}

// Input returns the input upper-cased for display
func (r *CouponResolver) Input() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return NormalizeCouponCode(r.input)
}

// Apply validates code (or the current input when code is empty) against
// subtotalPlusTaxes. On failure no discount is applied and the server's
// message is kept as the error.
func (r *CouponResolver) Apply(ctx context.Context, code string, subtotalPlusTaxes decimal.Decimal) (Coupon, error) {
	r.mu.Lock()
	if strings.TrimSpace(code) == "" {
		code = r.input
	}
	code = NormalizeCouponCode(code)
	if code == "" {
		r.err = ErrEmptyCouponCode
		r.mu.Unlock()
		return Coupon{}, ErrEmptyCouponCode
	}
	r.mu.Unlock()

	coupon, err := r.validator.ValidateCoupon(ctx, code, subtotalPlusTaxes)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.err = err
		return Coupon{}, err
	}
	if coupon.Code == "" {
		coupon.Code = code
	}
	coupon.AppliedDiscount = ClampDiscount(coupon.AppliedDiscount, subtotalPlusTaxes)
	r.applied = &coupon
	r.basis = subtotalPlusTaxes
	r.input = ""
	r.err = nil
	return coupon, nil
}

// Remove clears the applied coupon and any error
func (r *CouponResolver) Remove() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = nil
	r.basis = decimal.Zero
	r.err = nil
}

// Applied returns the applied coupon, if any
func (r *CouponResolver) Applied() (Coupon, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied == nil {
		return Coupon{}, false
	}
	return *r.applied, true
}

// Discount returns the applied discount or zero
func (r *CouponResolver) Discount() decimal.Decimal {
	c, ok := r.Applied()
	if !ok {
		return decimal.Zero
	}
	return c.AppliedDiscount
}

// Err returns the last coupon error
func (r *CouponResolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stale reports whether the subtotal has moved since the coupon was validated
func (r *CouponResolver) Stale(current decimal.Decimal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied != nil && !r.basis.Equal(current)
}
