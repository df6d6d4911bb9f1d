package booking

import (
	"github.com/shopspring/decimal"
)

// DefaultPlatformFee is the flat fee charged once per non-empty booking
var DefaultPlatformFee = decimal.NewFromInt(15)

// PricingLine is the priced form of one ledger entry
type PricingLine struct {
	OptionKey  string          `json:"optionKey"`
	OptionName string          `json:"optionName"`
	Quantity   int             `json:"quantity"`
	Days       int             `json:"days"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	UnitTax    decimal.Decimal `json:"unitTax"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
}

// PricingSnapshot is derived from a ledger, an option list and a day count.
// Total is the pre-fee amount; GrandTotal adds the fee and removes the discount.
type PricingSnapshot struct {
	Days           int             `json:"days"`
	Lines          []PricingLine   `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Taxes          decimal.Decimal `json:"taxes"`
	TotalOptions   int             `json:"totalOptions"`
	PlatformFee    decimal.Decimal `json:"platformFee"`
	Total          decimal.Decimal `json:"total"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
}

// ComputePricing prices every selected option for the given number of days.
// No rounding happens here; formatting belongs to the display layer.
func ComputePricing(ledger SelectionLedger, options []BookableOption, days int, platformFee decimal.Decimal) PricingSnapshot {
	if days < 1 {
		days = 1
	}
	if platformFee.IsNegative() {
		platformFee = decimal.Zero
	}

	snap := PricingSnapshot{
		Days:           days,
		Lines:          []PricingLine{},
		Subtotal:       decimal.Zero,
		Taxes:          decimal.Zero,
		PlatformFee:    decimal.Zero,
		CouponDiscount: decimal.Zero,
	}

	d := decimal.NewFromInt(int64(days))
	for _, opt := range options {
		qty := ledger.Quantity(opt.Key())
		if qty <= 0 {
			continue
		}
		q := decimal.NewFromInt(int64(qty))
		line := PricingLine{
			OptionKey:  opt.Key(),
			OptionName: opt.Name,
			Quantity:   qty,
			Days:       days,
			UnitPrice:  opt.Price,
			UnitTax:    opt.TaxOrZero(),
			Subtotal:   opt.Price.Mul(q).Mul(d),
			Tax:        opt.TaxOrZero().Mul(q).Mul(d),
		}
		snap.Lines = append(snap.Lines, line)
		snap.Subtotal = snap.Subtotal.Add(line.Subtotal)
		snap.Taxes = snap.Taxes.Add(line.Tax)
		snap.TotalOptions += qty
	}

	if snap.TotalOptions > 0 {
		snap.PlatformFee = platformFee
	}
	snap.Total = snap.Subtotal.Add(snap.Taxes)
	snap.GrandTotal = snap.Total.Add(snap.PlatformFee)
	return snap
}

// WithDiscount applies a coupon discount, clamped to [0, Total]
func (p PricingSnapshot) WithDiscount(amount decimal.Decimal) PricingSnapshot {
	p.CouponDiscount = ClampDiscount(amount, p.Total)
	p.GrandTotal = p.Total.Add(p.PlatformFee).Sub(p.CouponDiscount)
	return p
}

// CanBook reports whether anything is selected
func (p PricingSnapshot) CanBook() bool {
	return p.TotalOptions > 0
}

// ClampDiscount keeps a discount within [0, ceiling]
func ClampDiscount(amount, ceiling decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if ceiling.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(ceiling) {
		return ceiling
	}
	return amount
}
