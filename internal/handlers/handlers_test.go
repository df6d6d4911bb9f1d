package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmart/marketplace-backend/internal/middleware"
	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/internal/services"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

var testUserID = uuid.MustParse("11111111-2222-4333-8444-555555555555")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	decimal.MarshalJSONWithoutQuotes = true
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func withUser(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{UserID: testUserID, Roles: roles})
		c.Next()
	}
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("User-Agent", "TripMart/2.1 (iPhone; iOS 17.0)")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type fakeAuditWriter struct {
	entries []*models.AuditLog
}

func (f *fakeAuditWriter) Insert(ctx context.Context, entry *models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

// catalog

type fakeCatalog struct {
	detail *models.ServiceDetailResponse
	err    error
}

func (f *fakeCatalog) GetService(ctx context.Context, serviceType booking.ServiceType, id string) (*models.ServiceDetailResponse, error) {
	return f.detail, f.err
}

type fakeAvailability struct {
	result *booking.AvailabilityResult
	err    error
	got    booking.AvailabilityQuery
}

func (f *fakeAvailability) Check(ctx context.Context, q booking.AvailabilityQuery) (*booking.AvailabilityResult, error) {
	f.got = q
	return f.result, f.err
}

type fakeCoupons struct {
	result *models.CouponResult
	err    error
}

func (f *fakeCoupons) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.CouponResult, error) {
	return f.result, f.err
}

func setupCatalogRouter(h *CatalogHandler) *gin.Engine {
	router := gin.New()
	router.GET("/api/v1/services/:type/:id", h.GetService)
	router.GET("/api/v1/availability", h.CheckAvailability)
	router.POST("/api/v1/coupons/validate", h.ValidateCoupon)
	return router
}

func TestCatalogHandler_GetService(t *testing.T) {
	tests := []struct {
		name     string
		catalog  *fakeCatalog
		wantCode int
		wantBody string
	}{
		{"found", &fakeCatalog{detail: &models.ServiceDetailResponse{ID: "svc-1", Name: "Lake House", OptionLabel: "room"}}, http.StatusOK, `"optionLabel":"room"`},
		{"not found", &fakeCatalog{err: services.ErrServiceNotFound}, http.StatusNotFound, "not_found"},
		{"bad type", &fakeCatalog{err: services.ErrInvalidServiceType}, http.StatusBadRequest, "invalid_service_type"},
		{"database down", &fakeCatalog{err: errors.New("db down")}, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupCatalogRouter(NewCatalogHandler(tt.catalog, &fakeAvailability{}, &fakeCoupons{}, nil))
			w := doRequest(router, "GET", "/api/v1/services/stay/svc-1", "")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "db down")
		})
	}
}

func TestCatalogHandler_CheckAvailability(t *testing.T) {
	availability := &fakeAvailability{result: &booking.AvailabilityResult{
		AvailableOptionKeys: []string{"A"},
		BookedRanges:        []booking.BookedRange{{Start: "2024-05-11", End: "2024-05-13"}},
	}}
	router := setupCatalogRouter(NewCatalogHandler(&fakeCatalog{}, availability, &fakeCoupons{}, nil))

	w := doRequest(router, "GET", "/api/v1/availability?serviceType=stay&serviceId=svc-1&start=2024-05-10&end=2024-05-12", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, booking.AvailabilityQuery{ServiceType: booking.ServiceStay, ServiceID: "svc-1", Start: "2024-05-10", End: "2024-05-12"}, availability.got)

	body := decodeBody(t, w)
	assert.Equal(t, []interface{}{"A"}, body["availableOptionKeys"])
	assert.Len(t, body["bookedRanges"], 1)

	availability.err = booking.ErrInvalidDate
	w = doRequest(router, "GET", "/api/v1/availability?serviceType=stay&serviceId=svc-1&start=soon&end=2024-05-12", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	availability.err = fmt.Errorf("%w: at most 365 days", booking.ErrStayTooLong)
	w = doRequest(router, "GET", "/api/v1/availability?serviceType=stay&serviceId=svc-1&start=2024-01-01&end=2400-01-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_query")

	availability.err = services.ErrServiceNotFound
	w = doRequest(router, "GET", "/api/v1/availability?serviceType=stay&serviceId=svc-9&start=2024-05-10&end=2024-05-12", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogHandler_ValidateCoupon(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		coupons := &fakeCoupons{result: &models.CouponResult{Code: "SAVE10", AppliedDiscount: decimal.NewFromInt(20), DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(10)}}
		router := setupCatalogRouter(NewCatalogHandler(&fakeCatalog{}, &fakeAvailability{}, coupons, nil))

		w := doRequest(router, "POST", "/api/v1/coupons/validate", `{"code":"save10","subtotal":200}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"appliedDiscount":20`)
	})

	t.Run("rejected", func(t *testing.T) {
		writer := &fakeAuditWriter{}
		coupons := &fakeCoupons{err: &services.CouponError{Reason: services.CouponExpired, Message: "This coupon has expired"}}
		router := setupCatalogRouter(NewCatalogHandler(&fakeCatalog{}, &fakeAvailability{}, coupons, services.NewAuditService(writer, true)))

		w := doRequest(router, "POST", "/api/v1/coupons/validate", `{"code":"OLD","subtotal":200}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "This coupon has expired", body["message"])
		assert.Equal(t, services.CouponExpired, body["code"])

		require.Len(t, writer.entries, 1)
		assert.Equal(t, services.AuditCouponRejected, writer.entries[0].Action)
	})

	t.Run("bad request", func(t *testing.T) {
		router := setupCatalogRouter(NewCatalogHandler(&fakeCatalog{}, &fakeAvailability{}, &fakeCoupons{}, nil))

		w := doRequest(router, "POST", "/api/v1/coupons/validate", `{"subtotal":200}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(router, "POST", "/api/v1/coupons/validate", `{"code":"SAVE10","subtotal":-1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(router, "POST", "/api/v1/coupons/validate", `not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// bookings

type fakeBookings struct {
	booking *models.Booking
	created bool
	err     error
	gotUser string
	gotReq  *models.CreateBookingRequest
}

func (f *fakeBookings) CreateBooking(ctx context.Context, userID string, req *models.CreateBookingRequest, meta services.RequestMeta) (*models.Booking, bool, error) {
	f.gotUser = userID
	f.gotReq = req
	return f.booking, f.created, f.err
}

func (f *fakeBookings) GetBooking(ctx context.Context, userID, id string) (*models.Booking, error) {
	f.gotUser = userID
	return f.booking, f.err
}

func (f *fakeBookings) CancelBooking(ctx context.Context, userID, id string, meta services.RequestMeta) (*models.Booking, error) {
	return f.booking, f.err
}

func confirmedBooking() *models.Booking {
	start, _ := booking.ParseDate("2024-05-10")
	end, _ := booking.ParseDate("2024-05-12")
	return &models.Booking{
		ID:          "bk-1",
		ServiceID:   "svc-1",
		ServiceType: booking.ServiceStay,
		StartDate:   start,
		EndDate:     end,
		Status:      models.BookingStatusConfirmed,
		Currency:    "USD",
		Pricing:     models.BookingPricing{Days: 2, GrandTotal: decimal.NewFromInt(235)},
		TotalAmount: decimal.NewFromInt(235),
	}
}

const bookingBody = `{
	"serviceType": "stay",
	"serviceId": "5b0b8f36-9c1e-4c55-8f3a-2f1f0a1c9d11",
	"startDate": "2024-05-10",
	"endDate": "2024-05-12",
	"guests": 2,
	"customer": {"name": "Asha", "phone": "0771234567"},
	"items": [{"optionKey": "A", "quantity": 1}],
	"fees": {"grandTotal": 235},
	"idempotencyKey": "key-1"
}`

func setupBookingRouter(h *BookingHandler) *gin.Engine {
	router := gin.New()
	group := router.Group("/api/v1/bookings", withUser("user"))
	group.POST("", h.CreateBooking)
	group.GET("/:id", h.GetBooking)
	group.POST("/:id/cancel", h.CancelBooking)
	return router
}

func TestBookingHandler_CreateBooking(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		bookings := &fakeBookings{booking: confirmedBooking(), created: true}
		router := setupBookingRouter(NewBookingHandler(bookings, nil, booking.DefaultMaxStayDays))

		w := doRequest(router, "POST", "/api/v1/bookings", bookingBody)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, testUserID.String(), bookings.gotUser)
		require.NotNil(t, bookings.gotReq.Fees)
		assert.True(t, decimal.NewFromInt(235).Equal(bookings.gotReq.Fees.GrandTotal))

		body := decodeBody(t, w)
		conf := body["booking"].(map[string]interface{})
		assert.Equal(t, "bk-1", conf["id"])
		assert.Equal(t, "2024-05-12", conf["endDate"])
		assert.Equal(t, float64(235), conf["pricing"].(map[string]interface{})["grandTotal"])
	})

	t.Run("idempotent replay", func(t *testing.T) {
		router := setupBookingRouter(NewBookingHandler(&fakeBookings{booking: confirmedBooking()}, nil, booking.DefaultMaxStayDays))
		w := doRequest(router, "POST", "/api/v1/bookings", bookingBody)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	errorCases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"unavailable", &services.UnavailableError{OptionKeys: []string{"A"}}, http.StatusConflict, `"optionKeys":["A"]`},
		{"coupon", &services.CouponError{Reason: services.CouponExhausted, Message: "This coupon has reached its usage limit"}, http.StatusUnprocessableEntity, "This coupon has reached its usage limit"},
		{"service missing", services.ErrServiceNotFound, http.StatusNotFound, "not_found"},
		{"unknown option", services.ErrUnknownOption, http.StatusBadRequest, "unknown_option"},
		{"failure", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			router := setupBookingRouter(NewBookingHandler(&fakeBookings{err: tt.err}, services.NewAuditService(&fakeAuditWriter{}, true), booking.DefaultMaxStayDays))
			w := doRequest(router, "POST", "/api/v1/bookings", bookingBody)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}

	invalid := []struct {
		name string
		from string
		to   string
	}{
		{"bad date", `"startDate": "2024-05-10"`, `"startDate": "10/05/2024"`},
		{"bad service id", `"serviceId": "5b0b8f36-9c1e-4c55-8f3a-2f1f0a1c9d11"`, `"serviceId": "svc-1"`},
		{"no items", `[{"optionKey": "A", "quantity": 1}]`, `[]`},
		{"zero quantity", `"quantity": 1`, `"quantity": 0`},
		{"missing phone", `"phone": "0771234567"`, `"phone": " "`},
		{"unknown type", `"serviceType": "stay"`, `"serviceType": "cruise"`},
		{"end before start", `"endDate": "2024-05-12"`, `"endDate": "2024-05-01"`},
		{"stay too long", `"endDate": "2024-05-12"`, `"endDate": "2400-01-01"`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			bookings := &fakeBookings{booking: confirmedBooking(), created: true}
			router := setupBookingRouter(NewBookingHandler(bookings, nil, booking.DefaultMaxStayDays))

			w := doRequest(router, "POST", "/api/v1/bookings", strings.Replace(bookingBody, tt.from, tt.to, 1))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, bookings.gotReq)
		})
	}
}

func TestBookingHandler_GetAndCancel(t *testing.T) {
	router := setupBookingRouter(NewBookingHandler(&fakeBookings{booking: confirmedBooking()}, nil, booking.DefaultMaxStayDays))
	w := doRequest(router, "GET", "/api/v1/bookings/bk-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	router = setupBookingRouter(NewBookingHandler(&fakeBookings{err: services.ErrBookingNotFound}, nil, booking.DefaultMaxStayDays))
	w = doRequest(router, "GET", "/api/v1/bookings/bk-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	cancelled := confirmedBooking()
	cancelled.Status = models.BookingStatusCancelled
	router = setupBookingRouter(NewBookingHandler(&fakeBookings{booking: cancelled}, nil, booking.DefaultMaxStayDays))
	w = doRequest(router, "POST", "/api/v1/bookings/bk-1/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)

	router = setupBookingRouter(NewBookingHandler(&fakeBookings{err: services.ErrBookingNotCancelable}, nil, booking.DefaultMaxStayDays))
	w = doRequest(router, "POST", "/api/v1/bookings/bk-1/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

// orders

type fakeOrders struct {
	order   *models.Order
	created bool
	err     error
	called  bool
}

func (f *fakeOrders) CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest, meta services.RequestMeta) (*models.Order, bool, error) {
	f.called = true
	return f.order, f.created, f.err
}

func (f *fakeOrders) GetOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	return f.order, f.err
}

const orderBody = `{
	"items": [{"productId": "aaaaaaaa-0000-4000-8000-000000000001", "quantity": 2}],
	"address": {"fullName": "Asha Perera", "phone": "0771234567", "line": "12 Temple Road", "city": "Kandy", "state": "Central", "postalCode": "20000", "country": "LK"},
	"deliveryCharge": 5,
	"totalAmount": 70
}`

func setupOrderRouter(h *OrderHandler) *gin.Engine {
	router := gin.New()
	group := router.Group("/api/v1/orders", withUser("user"))
	group.POST("", h.CreateOrder)
	group.GET("/:id", h.GetOrder)
	return router
}

func placedOrder() *models.Order {
	return &models.Order{
		ID:             "ord-1",
		Status:         models.OrderStatusPlaced,
		PaymentMethod:  models.PaymentMethodCashOnDelivery,
		Subtotal:       decimal.NewFromInt(50),
		DeliveryCharge: decimal.NewFromInt(5),
		TotalAmount:    decimal.NewFromInt(55),
		ClientTotal:    decimal.NewNullDecimal(decimal.NewFromInt(70)),
		Currency:       "USD",
		CreatedAt:      time.Now(),
	}
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	t.Run("created with mismatch flag", func(t *testing.T) {
		router := setupOrderRouter(NewOrderHandler(&fakeOrders{order: placedOrder(), created: true}, nil))
		w := doRequest(router, "POST", "/api/v1/orders", orderBody)
		require.Equal(t, http.StatusCreated, w.Code)

		order := decodeBody(t, w)["order"].(map[string]interface{})
		assert.Equal(t, float64(55), order["totalAmount"])
		assert.Equal(t, true, order["clientTotalMismatch"])
		assert.Equal(t, "cash_on_delivery", order["paymentMethod"])
	})

	t.Run("insufficient stock", func(t *testing.T) {
		orders := &fakeOrders{err: &services.StockError{ProductID: "aaaaaaaa-0000-4000-8000-000000000001", ProductName: "Mug", Requested: 2, Available: 1}}
		router := setupOrderRouter(NewOrderHandler(orders, nil))
		w := doRequest(router, "POST", "/api/v1/orders", orderBody)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "insufficient_stock")
	})

	t.Run("service line", func(t *testing.T) {
		orders := &fakeOrders{}
		router := setupOrderRouter(NewOrderHandler(orders, nil))
		body := strings.Replace(orderBody, `"productId": "aaaaaaaa-0000-4000-8000-000000000001", `, `"serviceType": "stay", "serviceId": "svc-1", `, 1)
		w := doRequest(router, "POST", "/api/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "service_in_order")
		assert.False(t, orders.called)
	})

	t.Run("missing address field", func(t *testing.T) {
		orders := &fakeOrders{}
		router := setupOrderRouter(NewOrderHandler(orders, nil))
		w := doRequest(router, "POST", "/api/v1/orders", strings.Replace(orderBody, `"city": "Kandy"`, `"city": ""`, 1))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"fields":["city"]`)
		assert.False(t, orders.called)
	})
}

func TestOrderHandler_GetOrder(t *testing.T) {
	router := setupOrderRouter(NewOrderHandler(&fakeOrders{order: placedOrder()}, nil))
	w := doRequest(router, "GET", "/api/v1/orders/ord-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	router = setupOrderRouter(NewOrderHandler(&fakeOrders{err: services.ErrOrderNotFound}, nil))
	w = doRequest(router, "GET", "/api/v1/orders/ord-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// admin and health

type fakeJobs struct {
	run services.JobRun
	err error
}

func (f *fakeJobs) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{"running": true, "jobCount": 2}
}

func (f *fakeJobs) RunNow(name string) (services.JobRun, error) {
	return f.run, f.err
}

func TestAdminHandler(t *testing.T) {
	setup := func(jobs JobRunner) *gin.Engine {
		h := NewAdminHandler(jobs)
		router := gin.New()
		admin := router.Group("/api/v1/admin", withUser("admin"), middleware.RequireRole("admin"))
		admin.GET("/cron/status", h.GetCronStatus)
		admin.POST("/cron/:job/run", h.RunCronJob)
		return router
	}

	router := setup(&fakeJobs{run: services.JobRun{Affected: 4}})
	w := doRequest(router, "GET", "/api/v1/admin/cron/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"jobCount":2`)

	w = doRequest(router, "POST", "/api/v1/admin/cron/expire_coupons/run", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"affected":4`)

	router = setup(&fakeJobs{err: errors.New(`unknown job "x"`)})
	w = doRequest(router, "POST", "/api/v1/admin/cron/x/run", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	router = setup(&fakeJobs{run: services.JobRun{Error: "connection reset"}})
	w = doRequest(router, "POST", "/api/v1/admin/cron/expire_coupons/run", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthHandler(t *testing.T) {
	ok := PingerFunc(func(ctx context.Context) error { return nil })
	down := PingerFunc(func(ctx context.Context) error { return errors.New("down") })

	tests := []struct {
		name       string
		db, cache  Pinger
		wantCode   int
		wantStatus string
	}{
		{"healthy", ok, ok, http.StatusOK, "healthy"},
		{"no cache configured", ok, nil, http.StatusOK, "healthy"},
		{"redis down", ok, down, http.StatusOK, "degraded"},
		{"database down", down, ok, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", NewHealthHandler(tt.db, tt.cache).Health)

			w := doRequest(router, "GET", "/health", "")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantStatus, decodeBody(t, w)["status"])
		})
	}
}
