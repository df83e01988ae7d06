package models

import "time"

// Cancellation initiators.
const (
	InitiatorMusician  = "musician"
	InitiatorOrganizer = "organizer"
)

// Suspension reasons.
const (
	SuspensionReasonLate     = "late_cancellation"
	SuspensionReasonFrequent = "frequent_cancellation"
)

// CancellationRecord logs a cancelled confirmation.
type CancellationRecord struct {
	BaseModel

	MusicianID  string    `gorm:"size:64;not null;index:idx_cancellations_musician_time" json:"musician_id"`
	InviteID    string    `gorm:"size:64;not null;index" json:"invite_id"`
	RoleID      string    `gorm:"size:64;not null;index" json:"role_id"`
	GigStartsAt time.Time `gorm:"not null" json:"gig_starts_at"`
	CancelledAt time.Time `gorm:"not null;index:idx_cancellations_musician_time" json:"cancelled_at"`
	CancelledBy string    `gorm:"size:64;not null" json:"cancelled_by"`
	Initiator   string    `gorm:"type:varchar(32);not null" json:"initiator"`
	Late        bool      `gorm:"not null;default:false" json:"late"`
}

// Suspension is a time-bounded ban on receiving new invites.
type Suspension struct {
	BaseModel

	MusicianID     string    `gorm:"size:64;not null;index:idx_suspensions_musician_window" json:"musician_id"`
	StartsAt       time.Time `gorm:"not null;index:idx_suspensions_musician_window" json:"starts_at"`
	EndsAt         time.Time `gorm:"not null;index:idx_suspensions_musician_window" json:"ends_at"`
	Reason         string    `gorm:"type:varchar(64);not null" json:"reason"`
	CancellationID string    `gorm:"size:64;index" json:"cancellation_id"`
}

// ActiveAt reports whether the suspension covers t.
func (s *Suspension) ActiveAt(t time.Time) bool {
	return s != nil && !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}
