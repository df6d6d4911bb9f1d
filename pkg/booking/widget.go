package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WidgetState is the lifecycle position of a booking widget
type WidgetState string

const (
	StateIdle            WidgetState = "idle"
	StateDatesSelected   WidgetState = "dates_selected"
	StateOptionsSelected WidgetState = "options_selected"
	StatePricingComputed WidgetState = "pricing_computed"
	StateCouponApplied   WidgetState = "coupon_applied"
	StateSubmitting      WidgetState = "submitting"
	StateConfirmed       WidgetState = "confirmed"
)

// BookingSubmitter creates a booking remotely
type BookingSubmitter interface {
	CreateBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error)
}

// WidgetConfig wires a widget to one service and its collaborators
type WidgetConfig struct {
	ServiceType  ServiceType
	ServiceID    string
	Options      []BookableOption
	PlatformFee  decimal.NullDecimal // unset uses DefaultPlatformFee
	Availability AvailabilitySource
	Coupons      CouponValidator
	Submitter    BookingSubmitter
	Timeout      time.Duration
	Metadata     map[string]string

	// BookedRangePreview matches the server's preview size; zero uses the default
	BookedRangePreview int

	// OnSelect runs after an option goes from zero to a positive quantity
	OnSelect func(key string)
}

// Widget drives one booking attempt for a single service: date selection,
// availability gating, option quantities, pricing, coupon and submission.
type Widget struct {
	mu sync.Mutex

	serviceType ServiceType
	serviceID   string
	options     []BookableOption
	platformFee decimal.Decimal
	submitter   BookingSubmitter
	metadata    map[string]string
	onSelect    func(key string)

	gate    *AvailabilityGate
	coupons *CouponResolver

	start          string
	end            string
	guests         int
	ledger         SelectionLedger
	state          WidgetState
	lastErr        error
	confirmation   *BookingConfirmation
	idempotencyKey string
}

// NewWidget creates a widget in the Idle state
func NewWidget(cfg WidgetConfig) *Widget {
	fee := DefaultPlatformFee
	if cfg.PlatformFee.Valid {
		fee = cfg.PlatformFee.Decimal
	}
	gate := NewAvailabilityGate(cfg.Availability, cfg.Timeout)
	gate.SetPreview(cfg.BookedRangePreview)
	return &Widget{
		serviceType: cfg.ServiceType,
		serviceID:   cfg.ServiceID,
		options:     cfg.Options,
		platformFee: fee,
		submitter:   cfg.Submitter,
		metadata:    cfg.Metadata,
		onSelect:    cfg.OnSelect,
		gate:        gate,
		coupons:     NewCouponResolver(cfg.Coupons),
		guests:      1,
		ledger:      NewLedger(cfg.Options),
		state:       StateIdle,
	}
}

// SelectDates sets the booking window and checks availability for it.
// Selected options the new result marks unavailable are cleared.
func (w *Widget) SelectDates(ctx context.Context, start, end string) (AvailabilityResult, error) {
	if _, err := NewDateRange(start, end); err != nil {
		w.fail(err)
		return w.gate.Result(), err
	}

	w.mu.Lock()
	if err := w.mutableLocked(); err != nil {
		w.mu.Unlock()
		return w.gate.Result(), err
	}
	w.start = start
	w.end = end
	w.idempotencyKey = ""
	w.lastErr = nil
	w.settleLocked()
	q := AvailabilityQuery{ServiceType: w.serviceType, ServiceID: w.serviceID, Start: start, End: end}
	w.mu.Unlock()

	result, applied := w.gate.Check(ctx, q)
	if !applied {
		return result, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	gate := GateFor(result, w.options)
	next := w.ledger.Clone()
	for key, qty := range next {
		if qty > 0 && gate.IsUnavailable(key) {
			next[key] = 0
		}
	}
	w.ledger = next
	w.settleLocked()
	if result.Error {
		w.lastErr = ErrAvailabilityUnknown
		if result.ErrorMessage == ErrAvailabilityTimeout.Error() {
			w.lastErr = ErrAvailabilityTimeout
		}
	}
	return result, nil
}

// SetGuests records the party size, at least one
func (w *Widget) SetGuests(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 1 {
		n = 1
	}
	w.guests = n
}

// Toggle selects or clears a single unit of an option
func (w *Widget) Toggle(key string) error {
	return w.mutate(key, func(l SelectionLedger, opt BookableOption, gate Gate) (SelectionLedger, bool) {
		return l.Toggle(key, opt.Capacity(), gate)
	})
}

// Step changes an option's quantity by delta
func (w *Widget) Step(key string, delta int) error {
	return w.mutate(key, func(l SelectionLedger, opt BookableOption, gate Gate) (SelectionLedger, bool) {
		return l.Step(key, delta, opt.Capacity(), gate)
	})
}

func (w *Widget) mutate(key string, fn func(SelectionLedger, BookableOption, Gate) (SelectionLedger, bool)) error {
	w.mu.Lock()
	if err := w.mutableLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.start == "" || w.end == "" {
		w.mu.Unlock()
		return ErrMissingDate
	}
	opt, ok := FindOption(w.options, key)
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("unknown option %q", key)
	}

	next, selected := fn(w.ledger, opt, GateFor(w.gate.Result(), w.options))
	w.ledger = next
	w.idempotencyKey = ""
	w.lastErr = nil
	w.settleLocked()
	onSelect := w.onSelect
	w.mu.Unlock()

	if selected && onSelect != nil {
		onSelect(key)
	}
	return nil
}

// Ledger returns a copy of the current selection
func (w *Widget) Ledger() SelectionLedger {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.Clone()
}

// Pricing computes the snapshot for the current selection, including any
// applied coupon discount.
func (w *Widget) Pricing() PricingSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.pricingLocked()
	if snap.CanBook() && w.state == StateOptionsSelected {
		w.state = StatePricingComputed
		if _, ok := w.coupons.Applied(); ok {
			w.state = StateCouponApplied
		}
	}
	return snap
}

func (w *Widget) pricingLocked() PricingSnapshot {
	snap := ComputePricing(w.ledger, w.options, Days(w.start, w.end), w.platformFee)
	if snap.CanBook() {
		snap = snap.WithDiscount(w.coupons.Discount())
	}
	return snap
}

// SetCouponInput records the coupon text field
func (w *Widget) SetCouponInput(code string) {
	w.coupons.SetInput(code)
}

// ApplyCoupon validates code against the current pre-fee total. When code
// is empty the recorded input is used.
func (w *Widget) ApplyCoupon(ctx context.Context, code string) (Coupon, error) {
	w.mu.Lock()
	if err := w.mutableLocked(); err != nil {
		w.mu.Unlock()
		return Coupon{}, err
	}
	snap := ComputePricing(w.ledger, w.options, Days(w.start, w.end), w.platformFee)
	w.mu.Unlock()

	if !snap.CanBook() {
		return Coupon{}, ErrNoOptionsSelected
	}

	coupon, err := w.coupons.Apply(ctx, code, snap.Total)
	if err != nil {
		return Coupon{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateSubmitting && w.state != StateConfirmed {
		w.state = StateCouponApplied
	}
	return coupon, nil
}

// RemoveCoupon clears the applied coupon and its error
func (w *Widget) RemoveCoupon() {
	w.coupons.Remove()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateCouponApplied {
		w.state = StatePricingComputed
	}
}

// Coupon returns the applied coupon, if any
func (w *Widget) Coupon() (Coupon, bool) {
	return w.coupons.Applied()
}

// CouponErr returns the last coupon failure
func (w *Widget) CouponErr() error {
	return w.coupons.Err()
}

// CouponStale reports whether the selection changed after the coupon was
// validated. The discount is kept as returned; the server has the final say.
func (w *Widget) CouponStale() bool {
	w.mu.Lock()
	snap := ComputePricing(w.ledger, w.options, Days(w.start, w.end), w.platformFee)
	w.mu.Unlock()
	return w.coupons.Stale(snap.Total)
}

// Availability returns the latest applied availability result
func (w *Widget) Availability() AvailabilityResult {
	return w.gate.Result()
}

// SoldOut reports whether the selected range has no free option
func (w *Widget) SoldOut() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return GateFor(w.gate.Result(), w.options).SoldOut()
}

// CanBook reports whether the book action should be enabled
func (w *Widget) CanBook() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting || w.state == StateConfirmed {
		return false
	}
	return w.checkSubmittableLocked() == nil
}

// Submit validates the form locally and posts the booking. A rejected
// submission returns the widget to OptionsSelected with the selection intact
// and the error kept in LastErr, so it can be retried as is.
func (w *Widget) Submit(ctx context.Context, customer Customer) (BookingConfirmation, error) {
	w.mu.Lock()
	if err := w.mutableLocked(); err != nil {
		w.mu.Unlock()
		return BookingConfirmation{}, err
	}
	if err := customer.Validate(); err != nil {
		w.lastErr = err
		w.mu.Unlock()
		return BookingConfirmation{}, err
	}
	if err := w.checkSubmittableLocked(); err != nil {
		w.lastErr = err
		w.mu.Unlock()
		return BookingConfirmation{}, err
	}

	if w.idempotencyKey == "" {
		w.idempotencyKey = uuid.New().String()
	}
	coupon, _ := w.coupons.Applied()
	sel := ServiceSelection{
		ServiceType: w.serviceType,
		ServiceID:   w.serviceID,
		StartDate:   w.start,
		EndDate:     w.end,
		Guests:      w.guests,
		Options:     w.options,
		Ledger:      w.ledger.Clone(),
		Pricing:     w.pricingLocked(),
	}
	req := sel.BookingRequest(customer, coupon.Code)
	req.Metadata = w.metadata
	req.IdempotencyKey = w.idempotencyKey
	w.state = StateSubmitting
	w.lastErr = nil
	w.mu.Unlock()

	conf, err := w.submitter.CreateBooking(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.settleLocked()
		w.lastErr = err
		return BookingConfirmation{}, err
	}
	w.state = StateConfirmed
	w.confirmation = &conf
	w.coupons.Remove()
	return conf, nil
}

// State returns the current lifecycle state
func (w *Widget) State() WidgetState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastErr returns the most recent user-facing error
func (w *Widget) LastErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Confirmation returns the confirmed booking, if any
func (w *Widget) Confirmation() (BookingConfirmation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.confirmation == nil {
		return BookingConfirmation{}, false
	}
	return *w.confirmation, true
}

func (w *Widget) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
}

func (w *Widget) mutableLocked() error {
	switch w.state {
	case StateConfirmed:
		return ErrBookingConfirmed
	case StateSubmitting:
		return ErrSubmitInProgress
	}
	return nil
}

// settleLocked derives the pre-pricing state from dates and ledger
func (w *Widget) settleLocked() {
	switch {
	case w.start == "" || w.end == "":
		w.state = StateIdle
	case w.ledger.TotalQuantity() == 0:
		w.state = StateDatesSelected
	default:
		w.state = StateOptionsSelected
	}
}

func (w *Widget) checkSubmittableLocked() error {
	if w.start == "" || w.end == "" {
		return ErrMissingDate
	}
	if w.ledger.TotalQuantity() == 0 {
		return ErrNoOptionsSelected
	}
	result := w.gate.Result()
	switch {
	case result.Loading:
		return ErrAvailabilityPending
	case result.Error:
		return ErrAvailabilityUnknown
	}
	gate := GateFor(result, w.options)
	if gate.SoldOut() {
		return ErrSoldOut
	}
	for _, line := range w.ledger.Lines() {
		if gate.IsUnavailable(line.OptionKey) {
			return ErrSoldOut
		}
	}
	return nil
}
