package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AuditDetails is the JSONB payload of an audit entry
type AuditDetails map[string]interface{}

func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(d))
}

func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for AuditDetails")
	}
	return json.Unmarshal(bytes, (*map[string]interface{})(d))
}

// AuditLog is a row of audit_logs
type AuditLog struct {
	ID         string       `json:"id" db:"id"`
	UserID     *string      `json:"userId,omitempty" db:"user_id"`
	Action     string       `json:"action" db:"action"`
	EntityType string       `json:"entityType" db:"entity_type"`
	EntityID   *string      `json:"entityId,omitempty" db:"entity_id"`
	IPAddress  string       `json:"ipAddress" db:"ip_address"`
	UserAgent  string       `json:"userAgent" db:"user_agent"`
	Details    AuditDetails `json:"details" db:"details"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
}
