package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// BookingRepository handles database operations for bookings
type BookingRepository struct {
	db Querier
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db Querier) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, user_id, service_id, service_type, start_date, end_date, guests,
	customer_name, customer_email, customer_phone, status, coupon_code, pricing,
	total_amount, currency, metadata, idempotency_key, created_at, updated_at`

// Create inserts a booking and its items. Run it inside a transaction so a
// failed item insert leaves no orphan booking behind.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = models.BookingStatusConfirmed
	}

	query := `
		INSERT INTO bookings (
			id, user_id, service_id, service_type, start_date, end_date, guests,
			customer_name, customer_email, customer_phone, status, coupon_code, pricing,
			total_amount, currency, metadata, idempotency_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW()
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.UserID, b.ServiceID, b.ServiceType, b.StartDate, b.EndDate, b.Guests,
		b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Status, b.CouponCode, b.Pricing,
		b.TotalAmount, b.Currency, b.Metadata, b.IdempotencyKey,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	itemQuery := `
		INSERT INTO booking_items (id, booking_id, option_key, option_name, quantity, unit_price, unit_tax, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i := range b.Items {
		item := &b.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.BookingID = b.ID
		_, err := r.db.ExecContext(ctx, itemQuery,
			item.ID, item.BookingID, item.OptionKey, item.OptionName,
			item.Quantity, item.UnitPrice, item.UnitTax, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("failed to create booking item %s: %w", item.OptionKey, err)
		}
	}

	return nil
}

// GetByID returns a booking with its items, or nil when none exists
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIdempotencyKey returns the booking a user already created with key
func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 AND idempotency_key = $2`
	return r.getOne(ctx, query, userID, key)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	items, err := r.listItems(ctx, []string{b.ID})
	if err != nil {
		return nil, err
	}
	b.Items = items[b.ID]
	if b.Items == nil {
		b.Items = []models.BookingItem{}
	}
	return &b, nil
}

func (r *BookingRepository) listItems(ctx context.Context, bookingIDs []string) (map[string][]models.BookingItem, error) {
	query := `
		SELECT id, booking_id, option_key, option_name, quantity, unit_price, unit_tax, line_total
		FROM booking_items
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, option_key`

	var rows []models.BookingItem
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(bookingIDs)); err != nil {
		return nil, fmt.Errorf("failed to list booking items: %w", err)
	}

	byBooking := make(map[string][]models.BookingItem, len(bookingIDs))
	for _, item := range rows {
		byBooking[item.BookingID] = append(byBooking[item.BookingID], item)
	}
	return byBooking, nil
}

type reservationRow struct {
	ID        string    `db:"id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
}

// ListReservations returns the option holds of every non-cancelled booking
// of a service that occupies at least one day of window. A booking occupies
// [start_date, start_date + days), where a same-day booking counts one day.
func (r *BookingRepository) ListReservations(ctx context.Context, serviceID string, window booking.DateRange) ([]booking.Reservation, error) {
	query := `
		SELECT id, start_date, end_date
		FROM bookings
		WHERE service_id = $1
		  AND status <> 'cancelled'
		  AND start_date < $3
		  AND GREATEST(end_date, start_date + 1) > $2`

	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, serviceID, window.FirstDay(), window.EndExclusive()); err != nil {
		return nil, fmt.Errorf("failed to list overlapping bookings: %w", err)
	}
	if len(rows) == 0 {
		return []booking.Reservation{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	items, err := r.listItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	reservations := make([]booking.Reservation, 0, len(rows))
	for _, row := range rows {
		held := make(map[string]int, len(items[row.ID]))
		for _, item := range items[row.ID] {
			held[item.OptionKey] += item.Quantity
		}
		reservations = append(reservations, booking.Reservation{
			Range: booking.DateRange{Start: row.StartDate, End: row.EndDate},
			Items: held,
		})
	}
	return reservations, nil
}

// ListBookedRanges returns up to limit non-cancelled bookings of a service
// that start before windowEnd and have not finished by today, earliest first.
func (r *BookingRepository) ListBookedRanges(ctx context.Context, serviceID string, windowEnd, today time.Time, limit int) ([]booking.BookedRange, error) {
	if limit <= 0 {
		return []booking.BookedRange{}, nil
	}

	query := `
		SELECT id, start_date, end_date
		FROM bookings
		WHERE service_id = $1
		  AND status <> 'cancelled'
		  AND start_date < $2
		  AND end_date >= $3
		ORDER BY start_date, end_date
		LIMIT $4`

	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, serviceID, windowEnd, today, limit); err != nil {
		return nil, fmt.Errorf("failed to list booked ranges: %w", err)
	}

	ranges := make([]booking.BookedRange, len(rows))
	for i, row := range rows {
		ranges[i] = booking.BookedRange{
			Start: row.StartDate.Format(booking.DateLayout),
			End:   row.EndDate.Format(booking.DateLayout),
		}
	}
	return ranges, nil
}

// Cancel marks a user's confirmed booking as cancelled. Returns false when
// no confirmed booking matched.
func (r *BookingRepository) Cancel(ctx context.Context, id, userID string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'confirmed'`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// CompleteFinished marks confirmed bookings that ended before today as completed
func (r *BookingRepository) CompleteFinished(ctx context.Context, today time.Time) (int64, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'confirmed' AND end_date < $1`

	result, err := r.db.ExecContext(ctx, query, today)
	if err != nil {
		return 0, fmt.Errorf("failed to complete finished bookings: %w", err)
	}
	return result.RowsAffected()
}
