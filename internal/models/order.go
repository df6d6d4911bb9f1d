package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// PaymentMethodCashOnDelivery is the only payment method orders accept
const PaymentMethodCashOnDelivery = "cash_on_delivery"

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPlaced OrderStatus = "placed"
)

// ErrServiceInOrder rejects service lines in a product order
var ErrServiceInOrder = errors.New("services must be booked individually")

// Product is a purchasable item with tracked stock
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Stock     int             `json:"stock" db:"stock"`
	Currency  string          `json:"currency" db:"currency"`
	IsActive  bool            `json:"isActive" db:"is_active"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Order is a cash-on-delivery product order
type Order struct {
	ID             string              `json:"id" db:"id"`
	UserID         string              `json:"userId" db:"user_id"`
	Status         OrderStatus         `json:"status" db:"status"`
	PaymentMethod  string              `json:"paymentMethod" db:"payment_method"`
	FullName       string              `json:"fullName" db:"full_name"`
	Phone          string              `json:"phone" db:"phone"`
	AddressLine    string              `json:"line" db:"address_line"`
	City           string              `json:"city" db:"city"`
	State          string              `json:"state" db:"state"`
	PostalCode     string              `json:"postalCode" db:"postal_code"`
	Country        string              `json:"country" db:"country"`
	Subtotal       decimal.Decimal     `json:"subtotal" db:"subtotal"`
	DeliveryCharge decimal.Decimal     `json:"deliveryCharge" db:"delivery_charge"`
	Discount       decimal.Decimal     `json:"discount" db:"discount"`
	TotalAmount    decimal.Decimal     `json:"totalAmount" db:"total_amount"`
	ClientTotal    decimal.NullDecimal `json:"-" db:"client_total"`
	CouponCode     *string             `json:"couponCode,omitempty" db:"coupon_code"`
	Currency       string              `json:"currency" db:"currency"`
	IdempotencyKey *string             `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time           `json:"updatedAt" db:"updated_at"`

	Items []OrderItem `json:"items" db:"-"`
}

// ClientTotalMismatch reports whether the client's total differed from ours
func (o *Order) ClientTotalMismatch() bool {
	return o.ClientTotal.Valid && !o.ClientTotal.Decimal.Equal(o.TotalAmount)
}

// SetAddress copies a delivery address onto the order
func (o *Order) SetAddress(a booking.Address) {
	a = a.Trimmed()
	o.FullName = a.FullName
	o.Phone = a.Phone
	o.AddressLine = a.Line
	o.City = a.City
	o.State = a.State
	o.PostalCode = a.PostalCode
	o.Country = a.Country
}

// OrderItem is one product line of an order
type OrderItem struct {
	ID          string          `json:"-" db:"id"`
	OrderID     string          `json:"-" db:"order_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"name" db:"product_name"`
	Variant     *string         `json:"variant,omitempty" db:"variant"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	LineTotal   decimal.Decimal `json:"lineTotal" db:"line_total"`
}

// CreateOrderItemRequest is one submitted order line
type CreateOrderItemRequest struct {
	ProductID   string `json:"productId"`
	ServiceType string `json:"serviceType"`
	ServiceID   string `json:"serviceId"`
	Variant     string `json:"variant" binding:"omitempty,max=100"`
	Quantity    int    `json:"quantity" binding:"required,min=1,max=1000"`
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	Items          []CreateOrderItemRequest `json:"items" binding:"required,min=1,max=100,dive"`
	Address        booking.Address          `json:"address"`
	DeliveryCharge decimal.NullDecimal      `json:"deliveryCharge"`
	CouponCode     string                   `json:"couponCode" binding:"omitempty,max=50"`
	TotalAmount    decimal.NullDecimal      `json:"totalAmount"`
	IdempotencyKey string                   `json:"idempotencyKey" binding:"omitempty,max=100"`
}

// Validate checks the fields binding tags cannot express
func (r *CreateOrderRequest) Validate() error {
	if err := r.Address.Validate(); err != nil {
		return err
	}
	if _, err := phoneValidator.Validate(r.Address.Phone); err != nil {
		return fmt.Errorf("address phone: %w", err)
	}
	for _, item := range r.Items {
		if item.ServiceType != "" || item.ServiceID != "" {
			return ErrServiceInOrder
		}
		if _, err := uuid.Parse(item.ProductID); err != nil {
			return errors.New("every item needs a valid productId")
		}
	}
	return nil
}

// OrderResponseBody is the order returned to clients
type OrderResponseBody struct {
	ID                  string          `json:"id"`
	Status              OrderStatus     `json:"status"`
	PaymentMethod       string          `json:"paymentMethod"`
	Items               []OrderItem     `json:"items"`
	Address             booking.Address `json:"address"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DeliveryCharge      decimal.Decimal `json:"deliveryCharge"`
	Discount            decimal.Decimal `json:"discount"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	CouponCode          string          `json:"couponCode,omitempty"`
	Currency            string          `json:"currency"`
	ClientTotalMismatch bool            `json:"clientTotalMismatch"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// OrderResponse wraps an order
type OrderResponse struct {
	Order OrderResponseBody `json:"order"`
}

// NewOrderResponse builds the response for an order
func NewOrderResponse(o *Order) OrderResponse {
	body := OrderResponseBody{
		ID:            o.ID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Items:         o.Items,
		Address: booking.Address{
			FullName:   o.FullName,
			Phone:      o.Phone,
			Line:       o.AddressLine,
			City:       o.City,
			State:      o.State,
			PostalCode: o.PostalCode,
			Country:    o.Country,
		},
		Subtotal:            o.Subtotal,
		DeliveryCharge:      o.DeliveryCharge,
		Discount:            o.Discount,
		TotalAmount:         o.TotalAmount,
		Currency:            o.Currency,
		ClientTotalMismatch: o.ClientTotalMismatch(),
		CreatedAt:           o.CreatedAt,
	}
	if o.CouponCode != nil {
		body.CouponCode = *o.CouponCode
	}
	if body.Items == nil {
		body.Items = []OrderItem{}
	}
	return OrderResponse{Order: body}
}
