package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripmart/marketplace-backend/internal/models"
)

// OrderRepository handles database operations for product orders
type OrderRepository struct {
	db Querier
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, status, payment_method, full_name, phone, address_line, city,
	state, postal_code, country, subtotal, delivery_charge, discount, total_amount, client_total,
	coupon_code, currency, idempotency_key, created_at, updated_at`

// Create inserts an order and its items; run it inside a transaction
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPlaced
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = models.PaymentMethodCashOnDelivery
	}

	query := `
		INSERT INTO orders (
			id, user_id, status, payment_method, full_name, phone, address_line, city,
			state, postal_code, country, subtotal, delivery_charge, discount, total_amount,
			client_total, coupon_code, currency, idempotency_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW()
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		o.ID, o.UserID, o.Status, o.PaymentMethod, o.FullName, o.Phone, o.AddressLine, o.City,
		o.State, o.PostalCode, o.Country, o.Subtotal, o.DeliveryCharge, o.Discount, o.TotalAmount,
		o.ClientTotal, o.CouponCode, o.Currency, o.IdempotencyKey,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_name, variant, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.OrderID = o.ID
		_, err := r.db.ExecContext(ctx, itemQuery,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.Variant,
			item.Quantity, item.UnitPrice, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item %s: %w", item.ProductID, err)
		}
	}

	return nil
}

// GetByID returns an order with its items, or nil when none exists
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIdempotencyKey returns the order a user already placed with key
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`
	return r.getOne(ctx, query, userID, key)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	itemQuery := `
		SELECT id, order_id, product_id, product_name, variant, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name`

	o.Items = []models.OrderItem{}
	if err := r.db.SelectContext(ctx, &o.Items, itemQuery, o.ID); err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	return &o, nil
}
