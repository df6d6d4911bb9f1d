package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripmart/marketplace-backend/pkg/booking"
)

// Client talks to the marketplace REST API. It satisfies the availability,
// coupon and submission interfaces of the booking package.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

var (
	_ booking.AvailabilitySource = (*Client)(nil)
	_ booking.CouponValidator    = (*Client)(nil)
	_ booking.BookingSubmitter   = (*Client)(nil)
)

// Config holds configuration for the API client
type Config struct {
	BaseURL    string
	Token      string // Optional: bearer token for authenticated endpoints
	Timeout    time.Duration
	HTTPClient *http.Client
}

// APIError is a non-2xx response. Message is the server's text, shown to
// users as is.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return http.StatusText(e.StatusCode)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// New creates a new API client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  httpClient,
	}
}

// WithToken returns a copy of the client that sends token
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Service is the public detail of a bookable service
type Service struct {
	ID          string                   `json:"id"`
	Type        booking.ServiceType      `json:"type"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Location    string                   `json:"location"`
	Currency    string                   `json:"currency"`
	Options     []booking.BookableOption `json:"options"`
}

// GetService fetches one service with its bookable options
func (c *Client) GetService(ctx context.Context, serviceType booking.ServiceType, id string) (*Service, error) {
	var resp struct {
		Service Service `json:"service"`
	}
	path := fmt.Sprintf("/api/v1/services/%s/%s", url.PathEscape(string(serviceType)), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Service, nil
}

// CheckAvailability implements booking.AvailabilitySource
func (c *Client) CheckAvailability(ctx context.Context, q booking.AvailabilityQuery) (booking.AvailabilityResult, error) {
	params := url.Values{}
	params.Set("serviceType", string(q.ServiceType))
	params.Set("serviceId", q.ServiceID)
	params.Set("start", q.Start)
	params.Set("end", q.End)

	var resp struct {
		AvailableOptionKeys []string              `json:"availableOptionKeys"`
		BookedRanges        []booking.BookedRange `json:"bookedRanges"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/availability?"+params.Encode(), nil, &resp); err != nil {
		return booking.AvailabilityResult{}, err
	}
	return booking.AvailabilityResult{
		AvailableOptionKeys: resp.AvailableOptionKeys,
		BookedRanges:        resp.BookedRanges,
	}, nil
}

// ValidateCoupon implements booking.CouponValidator
func (c *Client) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (booking.Coupon, error) {
	body := struct {
		Code     string          `json:"code"`
		Subtotal decimal.Decimal `json:"subtotal"`
	}{Code: code, Subtotal: subtotal}

	var resp struct {
		Coupon booking.Coupon `json:"coupon"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/coupons/validate", body, &resp); err != nil {
		return booking.Coupon{}, err
	}
	return resp.Coupon, nil
}

// CreateBooking implements booking.BookingSubmitter
func (c *Client) CreateBooking(ctx context.Context, req booking.BookingRequest) (booking.BookingConfirmation, error) {
	var resp struct {
		Booking booking.BookingConfirmation `json:"booking"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/bookings", req, &resp); err != nil {
		return booking.BookingConfirmation{}, err
	}
	return resp.Booking, nil
}

// CreateOrder submits a checkout order
func (c *Client) CreateOrder(ctx context.Context, req booking.OrderRequest) (booking.OrderConfirmation, error) {
	var resp struct {
		Order booking.OrderConfirmation `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", req, &resp); err != nil {
		return booking.OrderConfirmation{}, err
	}
	return resp.Order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(data) > 0 {
			// Non-JSON bodies still produce an error carrying the status
			_ = json.Unmarshal(data, apiErr)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
