package models

import "time"

// Invite binds one gig role to one candidate musician.
type Invite struct {
	BaseModel

	RoleID      string `gorm:"size:64;not null;index:idx_invites_role_musician" json:"role_id"`
	GigID       string `gorm:"size:64;not null;index" json:"gig_id"`
	MusicianID  string `gorm:"size:64;not null;index:idx_invites_role_musician;index" json:"musician_id"`
	OrganizerID string `gorm:"size:64;not null;index" json:"organizer_id"`
	Status      string `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Message     string `gorm:"type:text" json:"message,omitempty"`

	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `gorm:"type:varchar(64)" json:"close_reason,omitempty"`

	Role *GigRole `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Gig  *Gig     `gorm:"foreignKey:GigID" json:"gig,omitempty"`
}
