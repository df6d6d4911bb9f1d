package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmart/marketplace-backend/pkg/booking"
	"github.com/tripmart/marketplace-backend/pkg/validator"
)

func TestCoupon_DiscountFor(t *testing.T) {
	maxUses := 3
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal string
		expected string
	}{
		{"percentage", Coupon{DiscountType: DiscountPercentage, DiscountValue: decimal.NewFromInt(10)}, "500", "50"},
		{"percentage capped", Coupon{DiscountType: DiscountPercentage, DiscountValue: decimal.NewFromInt(50), MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(100))}, "500", "100"},
		{"fixed", Coupon{DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(30)}, "500", "30"},
		{"fixed above subtotal", Coupon{DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(30)}, "20", "20"},
		{"zero subtotal", Coupon{DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(30)}, "0", "0"},
		{"unknown type", Coupon{DiscountType: "bogo", DiscountValue: decimal.NewFromInt(30), MaxUses: &maxUses}, "100", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.DiscountFor(decimal.RequireFromString(tt.subtotal))
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestCoupon_UsageExhausted(t *testing.T) {
	limit := 2
	assert.False(t, (&Coupon{Uses: 5}).UsageExhausted())
	assert.False(t, (&Coupon{Uses: 1, MaxUses: &limit}).UsageExhausted())
	assert.True(t, (&Coupon{Uses: 2, MaxUses: &limit}).UsageExhausted())
}

func TestBookingPricing_ValueScan(t *testing.T) {
	options := []booking.BookableOption{{ID: "A", Price: decimal.NewFromInt(100), Available: 2}}
	snap := booking.ComputePricing(booking.SelectionLedger{"A": 1}, options, 2, decimal.NewFromInt(15))

	value, err := BookingPricing(snap).Value()
	require.NoError(t, err)

	var scanned BookingPricing
	require.NoError(t, scanned.Scan(value))
	assert.True(t, decimal.NewFromInt(215).Equal(scanned.GrandTotal))
	assert.Equal(t, 2, scanned.Days)

	assert.Error(t, scanned.Scan("not bytes"))
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, 0, scanned.TotalOptions)
}

func TestBookingMetadata_ValueScan(t *testing.T) {
	value, err := BookingMetadata(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), value)

	var m BookingMetadata
	require.NoError(t, m.Scan([]byte(`{"platform":"android"}`)))
	assert.Equal(t, "android", m["platform"])
}

func validBookingRequest() CreateBookingRequest {
	return CreateBookingRequest{
		ServiceType: booking.ServiceStay,
		ServiceID:   "5b0b8f36-8d55-4a57-9c3c-3b8f7a8d2f10",
		StartDate:   "2024-05-10",
		EndDate:     "2024-05-12",
		Customer:    booking.Customer{Name: "Asha", Phone: "0771234567"},
		Items:       []booking.LineSelection{{OptionKey: "A", Quantity: 1}},
	}
}

func TestCreateBookingRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateBookingRequest)
		wantErr bool
	}{
		{"valid", func(r *CreateBookingRequest) {}, false},
		{"same day", func(r *CreateBookingRequest) { r.EndDate = r.StartDate }, false},
		{"unknown type", func(r *CreateBookingRequest) { r.ServiceType = "cruise" }, true},
		{"inverted dates", func(r *CreateBookingRequest) { r.EndDate = "2024-05-01" }, true},
		{"longest stay", func(r *CreateBookingRequest) { r.StartDate, r.EndDate = "2024-01-01", "2024-12-31" }, false},
		{"stay too long", func(r *CreateBookingRequest) { r.EndDate = "2400-01-01" }, true},
		{"missing customer phone", func(r *CreateBookingRequest) { r.Customer.Phone = "" }, true},
		{"short customer phone", func(r *CreateBookingRequest) { r.Customer.Phone = "12 34" }, true},
		{"international phone", func(r *CreateBookingRequest) { r.Customer.Phone = "+94 77 123 4567" }, false},
		{"zero quantity", func(r *CreateBookingRequest) { r.Items[0].Quantity = 0 }, true},
		{"blank key", func(r *CreateBookingRequest) { r.Items[0].OptionKey = " " }, true},
		{"duplicate key", func(r *CreateBookingRequest) {
			r.Items = append(r.Items, booking.LineSelection{OptionKey: "A", Quantity: 2})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validBookingRequest()
			tt.mutate(&r)
			err := r.Validate(booking.DefaultMaxStayDays)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	address := booking.Address{FullName: "Asha", Phone: "0771234567", Line: "1 Main St", City: "Galle", State: "Southern", PostalCode: "80000", Country: "LK"}

	ok := CreateOrderRequest{Address: address, Items: []CreateOrderItemRequest{{ProductID: "5b0b8f36-8d55-4a57-9c3c-3b8f7a8d2f10", Quantity: 1}}}
	assert.NoError(t, ok.Validate())

	service := CreateOrderRequest{Address: address, Items: []CreateOrderItemRequest{{ServiceType: "stay", ServiceID: "x", Quantity: 1}}}
	assert.ErrorIs(t, service.Validate(), ErrServiceInOrder)

	badID := CreateOrderRequest{Address: address, Items: []CreateOrderItemRequest{{ProductID: "p1", Quantity: 1}}}
	assert.Error(t, badID.Validate())

	badPhone := ok
	badPhone.Address.Phone = "call me"
	assert.ErrorIs(t, badPhone.Validate(), validator.ErrInvalidFormat)

	noAddress := CreateOrderRequest{Items: ok.Items}
	assert.True(t, booking.IsValidationError(noAddress.Validate()))
}

func TestOrderResponse(t *testing.T) {
	code := "SAVE10"
	o := &Order{
		ID:          "o1",
		Status:      OrderStatusPlaced,
		TotalAmount: decimal.NewFromInt(27),
		ClientTotal: decimal.NewNullDecimal(decimal.NewFromInt(30)),
		CouponCode:  &code,
	}
	o.SetAddress(booking.Address{FullName: " Asha ", City: "Galle"})

	resp := NewOrderResponse(o)

	assert.True(t, resp.Order.ClientTotalMismatch)
	assert.Equal(t, "SAVE10", resp.Order.CouponCode)
	assert.Equal(t, "Asha", resp.Order.Address.FullName)
	assert.NotNil(t, resp.Order.Items)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"clientTotalMismatch":true`)
}
