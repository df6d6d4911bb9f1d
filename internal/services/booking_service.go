package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/database"
	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/internal/utils"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

var (
	ErrOptionsUnavailable   = errors.New("selected options are no longer available for these dates")
	ErrUnknownOption        = errors.New("unknown option")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotCancelable = errors.New("only confirmed bookings can be cancelled")
)

// uniqueViolation is the Postgres error code for a duplicate key
const uniqueViolation = "23505"

// UnavailableError lists the options a booking asked for more of than
// remain free on at least one day of the range.
type UnavailableError struct {
	OptionKeys []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrOptionsUnavailable.Error(), strings.Join(e.OptionKeys, ", "))
}

func (e *UnavailableError) Unwrap() error {
	return ErrOptionsUnavailable
}

// CacheInvalidator drops cached availability after bookings change
type CacheInvalidator interface {
	Invalidate(ctx context.Context, serviceType booking.ServiceType, serviceID string)
}

// BookingService creates and reads service bookings
type BookingService struct {
	db          database.DB
	cache       CacheInvalidator
	audit       *AuditService
	platformFee decimal.Decimal
	now         func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(db database.DB, cache CacheInvalidator, audit *AuditService, platformFee decimal.Decimal) *BookingService {
	return &BookingService{
		db:          db,
		cache:       cache,
		audit:       audit,
		platformFee: platformFee,
		now:         time.Now,
	}
}

// CreateBooking reserves the requested options and stores the booking with
// a server-computed pricing snapshot. It returns the existing booking and
// created=false when the idempotency key was already used.
func (s *BookingService) CreateBooking(ctx context.Context, userID string, req *models.CreateBookingRequest, meta RequestMeta) (*models.Booking, bool, error) {
	window, err := booking.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, false, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := database.NewBookingRepository(s.db).GetByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	var created *models.Booking
	err = database.WithTx(ctx, s.db, func(q database.Querier) error {
		b, err := s.reserve(ctx, q, userID, req, window, meta)
		if err != nil {
			return err
		}
		created = b
		return nil
	})

	var pqErr *pq.Error
	if key != "" && errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		// Lost a race against a retry carrying the same key
		existing, lookupErr := database.NewBookingRepository(s.db).GetByIdempotencyKey(ctx, userID, key)
		if lookupErr == nil && existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, created.ServiceType, created.ServiceID)
	}
	s.audit.LogBookingCreated(ctx, created, meta)

	fields := logrus.Fields{
		"booking_id":  created.ID,
		"service_id":  created.ServiceID,
		"user_id":     userID,
		"grand_total": created.TotalAmount.String(),
	}
	if req.Fees != nil && !req.Fees.GrandTotal.Equal(created.TotalAmount) {
		fields["client_grand_total"] = req.Fees.GrandTotal.String()
		logrus.WithFields(fields).Warn("Client booking total differs from server pricing")
	} else {
		logrus.WithFields(fields).Info("Booking created")
	}

	return created, true, nil
}

func (s *BookingService) reserve(ctx context.Context, q database.Querier, userID string, req *models.CreateBookingRequest, window booking.DateRange, meta RequestMeta) (*models.Booking, error) {
	serviceRepo := database.NewServiceRepository(q)
	bookingRepo := database.NewBookingRepository(q)

	svc, err := serviceRepo.LockByID(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc == nil || svc.Type != req.ServiceType {
		return nil, ErrServiceNotFound
	}

	rows, err := serviceRepo.ListOptions(ctx, svc.ID)
	if err != nil {
		return nil, err
	}
	options := models.BookableOptions(rows)

	ledger := booking.SelectionLedger{}
	for _, item := range req.Items {
		key := strings.TrimSpace(item.OptionKey)
		if _, ok := booking.FindOption(options, key); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOption, key)
		}
		ledger[key] += item.Quantity
	}

	reservations, err := bookingRepo.ListReservations(ctx, svc.ID, window)
	if err != nil {
		return nil, err
	}
	free := booking.FreeCounts(options, reservations, window)

	var short []string
	for key, qty := range ledger {
		if qty > free[key] {
			short = append(short, key)
		}
	}
	if len(short) > 0 {
		sort.Strings(short)
		return nil, &UnavailableError{OptionKeys: short}
	}

	snap := booking.ComputePricing(ledger, options, window.Days(), s.platformFee)
	if !snap.CanBook() {
		return nil, booking.ErrNoOptionsSelected
	}

	coupon, discount, err := redeemCoupon(ctx, database.NewCouponRepository(q), req.CouponCode, snap.Total, s.now())
	if err != nil {
		return nil, err
	}
	snap = snap.WithDiscount(discount)

	customer := req.Customer
	b := &models.Booking{
		UserID:        userID,
		ServiceID:     svc.ID,
		ServiceType:   svc.Type,
		StartDate:     window.FirstDay(),
		EndDate:       booking.DateRange{Start: window.End}.FirstDay(),
		Guests:        req.Guests,
		CustomerName:  strings.TrimSpace(customer.Name),
		CustomerPhone: strings.TrimSpace(customer.Phone),
		Status:        models.BookingStatusConfirmed,
		Pricing:       models.BookingPricing(snap),
		TotalAmount:   snap.GrandTotal,
		Currency:      svc.Currency,
		Metadata:      bookingMetadata(req.Metadata, meta),
	}
	if b.Guests < 1 {
		b.Guests = 1
	}
	if email := strings.TrimSpace(customer.Email); email != "" {
		b.CustomerEmail = &email
	}
	if coupon != nil {
		b.CouponCode = &coupon.Code
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		b.IdempotencyKey = &key
	}

	for _, line := range snap.Lines {
		b.Items = append(b.Items, models.BookingItem{
			OptionKey:  line.OptionKey,
			OptionName: line.OptionName,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			UnitTax:    line.UnitTax,
			LineTotal:  line.Subtotal.Add(line.Tax),
		})
	}

	if err := bookingRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// bookingMetadata merges client hints with the device and address the
// server observed. Server values win on conflicting keys.
func bookingMetadata(client map[string]string, meta RequestMeta) models.BookingMetadata {
	md := models.BookingMetadata{}
	for k, v := range client {
		md[k] = v
	}
	for k, v := range utils.ParseUserAgent(meta.UserAgent).Metadata() {
		md[k] = v
	}
	if meta.IPAddress != "" {
		md["ip_address"] = meta.IPAddress
	}
	return md
}

// GetBooking returns one of the user's bookings
func (s *BookingService) GetBooking(ctx context.Context, userID, id string) (*models.Booking, error) {
	b, err := database.NewBookingRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil || b.UserID != userID {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

// CancelBooking releases a confirmed booking's options
func (s *BookingService) CancelBooking(ctx context.Context, userID, id string, meta RequestMeta) (*models.Booking, error) {
	repo := database.NewBookingRepository(s.db)

	b, err := s.GetBooking(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	ok, err := repo.Cancel(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBookingNotCancelable
	}
	b.Status = models.BookingStatusCancelled

	if s.cache != nil {
		s.cache.Invalidate(ctx, b.ServiceType, b.ServiceID)
	}
	s.audit.LogBookingCancelled(ctx, userID, id, meta)

	logrus.WithFields(logrus.Fields{
		"booking_id": id,
		"user_id":    userID,
	}).Info("Booking cancelled")

	return b, nil
}
