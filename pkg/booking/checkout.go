package booking

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItemProduct is the cart line type eligible for multi-item checkout
const LineItemProduct = "Product"

// CheckoutMode says how an order request was assembled
type CheckoutMode string

const (
	CheckoutSingleProduct CheckoutMode = "single_product"
	CheckoutSingleService CheckoutMode = "single_service"
	CheckoutCart          CheckoutMode = "cart"
)

// ErrAmbiguousCheckout is returned when zero or several sources are given
var ErrAmbiguousCheckout = errors.New("checkout needs exactly one of product, service or cart")

// Customer identifies who a booking is for
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
}

// Validate checks the required contact fields
func (c Customer) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Address is a delivery address
type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line       string `json:"line"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Validate checks that every field is non-empty after trimming
func (a Address) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"line", a.Line},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Trimmed returns a copy with surrounding whitespace removed
func (a Address) Trimmed() Address {
	return Address{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Line:       strings.TrimSpace(a.Line),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// CartLine is one line of a shopping cart
type CartLine struct {
	Type      string          `json:"type"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// ServiceSelection is a priced selection made in a booking widget
type ServiceSelection struct {
	ServiceType ServiceType
	ServiceID   string
	StartDate   string
	EndDate     string
	Guests      int
	Options     []BookableOption
	Ledger      SelectionLedger
	Pricing     PricingSnapshot
}

// CheckoutSource holds exactly one of a single product, a single service
// selection or a cart.
type CheckoutSource struct {
	Product *CartLine
	Service *ServiceSelection
	Cart    []CartLine
}

// CheckoutCharges are the amounts resolved outside the item list
type CheckoutCharges struct {
	DeliveryCharge decimal.Decimal
	Discount       decimal.Decimal
}

// OrderItem is one submitted order line
type OrderItem struct {
	ProductID   string          `json:"productId,omitempty"`
	ServiceType ServiceType     `json:"serviceType,omitempty"`
	ServiceID   string          `json:"serviceId,omitempty"`
	Name        string          `json:"name,omitempty"`
	Variant     string          `json:"variant,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// OrderRequest is the body posted to the order endpoint
type OrderRequest struct {
	Mode           CheckoutMode    `json:"-"`
	Items          []OrderItem     `json:"items"`
	Address        Address         `json:"address"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	CouponCode     string          `json:"couponCode,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`

	Subtotal decimal.Decimal `json:"-"`
	Discount decimal.Decimal `json:"-"`
}

// OrderConfirmation is the server's answer to an order submission
type OrderConfirmation struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"paymentMethod"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	Discount       decimal.Decimal `json:"discount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Currency       string          `json:"currency"`
}

// BuildOrder merges a single item or a cart with the delivery address and
// coupon into one order request. Cart checkout only takes Product lines;
// services are booked one at a time through their own widget.
func BuildOrder(src CheckoutSource, address Address, couponCode string, charges CheckoutCharges) (OrderRequest, error) {
	if err := address.Validate(); err != nil {
		return OrderRequest{}, err
	}

	sources := 0
	if src.Product != nil {
		sources++
	}
	if src.Service != nil {
		sources++
	}
	if src.Cart != nil {
		sources++
	}
	if sources != 1 {
		return OrderRequest{}, ErrAmbiguousCheckout
	}

	req := OrderRequest{
		Address:    address.Trimmed(),
		CouponCode: NormalizeCouponCode(couponCode),
	}

	switch {
	case src.Service != nil:
		return buildServiceOrder(req, src.Service)
	case src.Product != nil:
		req.Mode = CheckoutSingleProduct
		return buildProductOrder(req, []CartLine{*src.Product}, charges)
	default:
		req.Mode = CheckoutCart
		return buildProductOrder(req, src.Cart, charges)
	}
}

func buildProductOrder(req OrderRequest, lines []CartLine, charges CheckoutCharges) (OrderRequest, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Type != LineItemProduct || line.Quantity <= 0 {
			continue
		}
		total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		req.Items = append(req.Items, OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Variant:   line.Variant,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: total,
		})
		subtotal = subtotal.Add(total)
	}
	if len(req.Items) == 0 {
		return OrderRequest{}, ErrNoProductsInCart
	}

	delivery := charges.DeliveryCharge
	if delivery.IsNegative() {
		delivery = decimal.Zero
	}
	discount := ClampDiscount(charges.Discount, subtotal)

	req.Subtotal = subtotal
	req.Discount = discount
	req.DeliveryCharge = delivery
	req.TotalAmount = subtotal.Add(delivery).Sub(discount)
	return req, nil
}

func buildServiceOrder(req OrderRequest, sel *ServiceSelection) (OrderRequest, error) {
	if !sel.Pricing.CanBook() {
		return OrderRequest{}, ErrNoOptionsSelected
	}
	req.Mode = CheckoutSingleService
	for _, line := range sel.Pricing.Lines {
		req.Items = append(req.Items, OrderItem{
			ServiceType: sel.ServiceType,
			ServiceID:   sel.ServiceID,
			Name:        line.OptionName,
			Variant:     line.OptionKey,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.Add(line.UnitTax),
			LineTotal:   line.Subtotal.Add(line.Tax),
		})
	}
	req.Subtotal = sel.Pricing.Total
	req.Discount = sel.Pricing.CouponDiscount
	req.DeliveryCharge = sel.Pricing.PlatformFee
	req.TotalAmount = sel.Pricing.GrandTotal
	return req, nil
}

// BookingFees are the client-side amounts sent with a booking. The server
// reprices and treats them as advisory.
type BookingFees struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Taxes       decimal.Decimal `json:"taxes"`
	PlatformFee decimal.Decimal `json:"platformFee"`
	Discount    decimal.Decimal `json:"discount"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
}

// BookingRequest is the body posted to the booking endpoint
type BookingRequest struct {
	ServiceType    ServiceType       `json:"serviceType"`
	ServiceID      string            `json:"serviceId"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	Guests         int               `json:"guests"`
	Customer       Customer          `json:"customer"`
	Items          []LineSelection   `json:"items"`
	Fees           BookingFees       `json:"fees"`
	CouponCode     string            `json:"couponCode,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
}

// BookingConfirmation is the server's answer to a booking submission
type BookingConfirmation struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	ServiceType ServiceType     `json:"serviceType"`
	ServiceID   string          `json:"serviceId"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	Currency    string          `json:"currency"`
	CouponCode  string          `json:"couponCode,omitempty"`
	Pricing     PricingSnapshot `json:"pricing"`
}

// BookingRequest builds the submission for this selection
func (s ServiceSelection) BookingRequest(customer Customer, couponCode string) BookingRequest {
	return BookingRequest{
		ServiceType: s.ServiceType,
		ServiceID:   s.ServiceID,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		Guests:      s.Guests,
		Customer:    customer,
		Items:       s.Ledger.Lines(),
		Fees: BookingFees{
			Subtotal:    s.Pricing.Subtotal,
			Taxes:       s.Pricing.Taxes,
			PlatformFee: s.Pricing.PlatformFee,
			Discount:    s.Pricing.CouponDiscount,
			GrandTotal:  s.Pricing.GrandTotal,
		},
		CouponCode: NormalizeCouponCode(couponCode),
	}
}
