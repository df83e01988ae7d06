package models

import "time"

// Confirmation finalises one invite as the booking for a role. The unique
// index on role_id keeps a second concurrent writer from succeeding.
type Confirmation struct {
	BaseModel

	RoleID      string    `gorm:"size:64;not null;uniqueIndex" json:"role_id"`
	InviteID    string    `gorm:"size:64;not null;uniqueIndex" json:"invite_id"`
	GigID       string    `gorm:"size:64;not null;index" json:"gig_id"`
	MusicianID  string    `gorm:"size:64;not null;index" json:"musician_id"`
	ConfirmedBy string    `gorm:"size:64;not null" json:"confirmed_by"`
	ConfirmedAt time.Time `gorm:"not null" json:"confirmed_at"`

	Invite *Invite `gorm:"foreignKey:InviteID" json:"invite,omitempty"`
}
