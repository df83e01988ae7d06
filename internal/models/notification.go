package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message about a booking change. GigID links it
// to the gig it concerns; EventID ties it to the outbox event that produced
// it so redelivery never duplicates a row for the same recipient. EventID is
// nil for notifications raised outside the outbox.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"size:64;not null;index:idx_notifications_user_read;uniqueIndex:idx_notifications_event_user,priority:2" json:"user_id"`
	GigID     string         `gorm:"size:64;index" json:"gig_id,omitempty"`
	EventID   *string        `gorm:"size:64;uniqueIndex:idx_notifications_event_user,priority:1" json:"event_id,omitempty"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Severity  string         `gorm:"type:varchar(16);default:'info'" json:"severity"`
	ActionURL string         `gorm:"type:varchar(255)" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"not null;default:false;index:idx_notifications_user_read" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
