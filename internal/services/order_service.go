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
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
)

// StockError names the product an order asked for more of than is left
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d of %s left in stock, %d requested", e.Available, e.ProductName, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// OrderService places cash-on-delivery product orders
type OrderService struct {
	db             database.DB
	audit          *AuditService
	deliveryCharge decimal.Decimal
	currency       string
	now            func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(db database.DB, audit *AuditService, deliveryCharge decimal.Decimal, currency string) *OrderService {
	return &OrderService{
		db:             db,
		audit:          audit,
		deliveryCharge: deliveryCharge,
		currency:       currency,
		now:            time.Now,
	}
}

// CreateOrder takes stock for every line and stores the order with
// server-computed totals. Nothing is written when any line fails. It returns
// the existing order and created=false when the idempotency key was already
// used.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest, meta RequestMeta) (*models.Order, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := database.NewOrderRepository(s.db).GetByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	var created *models.Order
	err := database.WithTx(ctx, s.db, func(q database.Querier) error {
		o, err := s.place(ctx, q, userID, req)
		if err != nil {
			return err
		}
		created = o
		return nil
	})

	var pqErr *pq.Error
	if key != "" && errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		existing, lookupErr := database.NewOrderRepository(s.db).GetByIdempotencyKey(ctx, userID, key)
		if lookupErr == nil && existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	s.audit.LogOrderCreated(ctx, created, meta)

	fields := logrus.Fields{
		"order_id": created.ID,
		"user_id":  userID,
		"items":    len(created.Items),
		"total":    created.TotalAmount.String(),
	}
	if created.ClientTotalMismatch() {
		fields["client_total"] = created.ClientTotal.Decimal.String()
		logrus.WithFields(fields).Warn("Client order total differs from server total")
	} else {
		logrus.WithFields(fields).Info("Order placed")
	}

	return created, true, nil
}

func (s *OrderService) place(ctx context.Context, q database.Querier, userID string, req *models.CreateOrderRequest) (*models.Order, error) {
	productRepo := database.NewProductRepository(q)

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Take stock in a stable order so concurrent orders lock rows alike
	lines := make([]models.CreateOrderItemRequest, len(req.Items))
	copy(lines, req.Items)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	o := &models.Order{
		UserID:         userID,
		Status:         models.OrderStatusPlaced,
		PaymentMethod:  models.PaymentMethodCashOnDelivery,
		Subtotal:       decimal.Zero,
		DeliveryCharge: s.deliveryCharge,
		Currency:       s.currency,
		ClientTotal:    req.TotalAmount,
	}
	o.SetAddress(req.Address)

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}

		taken, err := productRepo.DecrementStock(ctx, product.ID, line.Quantity)
		if err != nil {
			return nil, err
		}
		if !taken {
			return nil, &StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Stock,
			}
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   lineTotal,
		}
		if variant := strings.TrimSpace(line.Variant); variant != "" {
			item.Variant = &variant
		}
		o.Items = append(o.Items, item)
		o.Subtotal = o.Subtotal.Add(lineTotal)
	}

	coupon, discount, err := redeemCoupon(ctx, database.NewCouponRepository(q), req.CouponCode, o.Subtotal, s.now())
	if err != nil {
		return nil, err
	}
	if coupon != nil {
		o.CouponCode = &coupon.Code
	}
	o.Discount = discount
	o.TotalAmount = o.Subtotal.Add(o.DeliveryCharge).Sub(o.Discount)

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		o.IdempotencyKey = &key
	}

	if err := database.NewOrderRepository(q).Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder returns one of the user's orders
func (s *OrderService) GetOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	o, err := database.NewOrderRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}
