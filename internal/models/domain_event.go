package models

import (
	"time"

	"gorm.io/datatypes"
)

// Outbox statuses.
const (
	EventStatusPending   = "pending"
	EventStatusDelivered = "delivered"
	EventStatusFailed    = "failed"
)

// DomainEvent is an outbox row written in the same transaction as the state
// change it describes.
type DomainEvent struct {
	BaseModel

	Type          string         `gorm:"type:varchar(64);not null;index" json:"type"`
	AggregateID   string         `gorm:"size:64;not null;index" json:"aggregate_id"`
	Payload       datatypes.JSON `json:"payload"`
	Status        string         `gorm:"type:varchar(32);not null;default:'pending';index:idx_events_status_next" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt time.Time      `gorm:"index:idx_events_status_next" json:"next_attempt_at"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
}
