package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/internal/utils"
)

// Audit actions
const (
	AuditBookingCreated   = "booking_created"
	AuditBookingCancelled = "booking_cancelled"
	AuditOrderCreated     = "order_created"
	AuditCouponRejected   = "coupon_rejected"
)

// RequestMeta describes the client that issued a request
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuditWriter persists audit entries
type AuditWriter interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// AuditService records checkout events. Write failures are logged and
// never reach the caller.
type AuditService struct {
	writer  AuditWriter
	enabled bool
}

// NewAuditService creates a new audit service
func NewAuditService(writer AuditWriter, enabled bool) *AuditService {
	return &AuditService{
		writer:  writer,
		enabled: enabled,
	}
}

// LogBookingCreated records a confirmed booking
func (s *AuditService) LogBookingCreated(ctx context.Context, b *models.Booking, meta RequestMeta) {
	s.logEvent(ctx, AuditEvent{
		UserID:     b.UserID,
		Action:     AuditBookingCreated,
		EntityType: "booking",
		EntityID:   b.ID,
		Meta:       meta,
		Details: map[string]interface{}{
			"service_id":   b.ServiceID,
			"service_type": b.ServiceType,
			"start_date":   b.Range().StartString(),
			"end_date":     b.Range().EndString(),
			"total_amount": b.TotalAmount.String(),
			"coupon_code":  b.CouponCode,
		},
	})
}

// LogBookingCancelled records a cancellation
func (s *AuditService) LogBookingCancelled(ctx context.Context, userID, bookingID string, meta RequestMeta) {
	s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     AuditBookingCancelled,
		EntityType: "booking",
		EntityID:   bookingID,
		Meta:       meta,
	})
}

// LogOrderCreated records a placed order
func (s *AuditService) LogOrderCreated(ctx context.Context, o *models.Order, meta RequestMeta) {
	s.logEvent(ctx, AuditEvent{
		UserID:     o.UserID,
		Action:     AuditOrderCreated,
		EntityType: "order",
		EntityID:   o.ID,
		Meta:       meta,
		Details: map[string]interface{}{
			"item_count":            len(o.Items),
			"total_amount":          o.TotalAmount.String(),
			"client_total_mismatch": o.ClientTotalMismatch(),
			"coupon_code":           o.CouponCode,
		},
	})
}

// LogCouponRejected records a code the server refused
func (s *AuditService) LogCouponRejected(ctx context.Context, userID, code string, cerr *CouponError, meta RequestMeta) {
	s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     AuditCouponRejected,
		EntityType: "coupon",
		Meta:       meta,
		Details: map[string]interface{}{
			"code":   code,
			"reason": cerr.Reason,
		},
	})
}

// AuditEvent is one entry to be written
type AuditEvent struct {
	UserID     string // empty for anonymous requests
	Action     string
	EntityType string
	EntityID   string
	Meta       RequestMeta
	Details    map[string]interface{}
}

func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) {
	if s == nil || !s.enabled || s.writer == nil {
		return
	}

	details := models.AuditDetails{"device_info": utils.ParseUserAgent(event.Meta.UserAgent)}
	for k, v := range event.Details {
		details[k] = v
	}

	entry := &models.AuditLog{
		Action:     event.Action,
		EntityType: event.EntityType,
		IPAddress:  event.Meta.IPAddress,
		UserAgent:  event.Meta.UserAgent,
		Details:    details,
	}
	if event.UserID != "" {
		entry.UserID = &event.UserID
	}
	if event.EntityID != "" {
		entry.EntityID = &event.EntityID
	}

	if err := s.writer.Insert(ctx, entry); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":    event.Action,
			"entity_id": event.EntityID,
		}).Error("Failed to write audit log")
	}
}
