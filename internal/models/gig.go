package models

import "time"

// Gig statuses.
const (
	GigStatusDraft     = "draft"
	GigStatusPublished = "published"
	GigStatusCancelled = "cancelled"
)

// Gig is a performance engagement posted by an organizer.
type Gig struct {
	BaseModel

	OrganizerID string    `gorm:"size:64;not null;index" json:"organizer_id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	StartsAt    time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`

	Address   string   `gorm:"type:varchar(512)" json:"address"`
	City      string   `gorm:"type:varchar(128)" json:"city"`
	State     string   `gorm:"type:varchar(64)" json:"state"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Status      string     `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Roles []GigRole `gorm:"foreignKey:GigID" json:"roles,omitempty"`
}
