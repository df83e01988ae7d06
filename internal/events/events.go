// Package events records lifecycle events in a transactional outbox and
// delivers them to subscribers after the originating transaction commits.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/models"
)

// Event types published by the booking engine.
const (
	TypeInviteCreated         = "invite.created"
	TypeInviteAccepted        = "invite.accepted"
	TypeInviteDeclined        = "invite.declined"
	TypeInviteWithdrawn       = "invite.withdrawn"
	TypeMusicianConfirmed     = "musician.confirmed"
	TypeConfirmationCancelled = "confirmation.cancelled"
	TypeMusicianSuspended     = "musician.suspended"
	TypeRatingSubmitted       = "rating.submitted"
)

// Event is the delivered form of an outbox row.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Attempt     int             `json:"attempt"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("events: %s has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}

// InvitePayload describes an invite transition.
type InvitePayload struct {
	InviteID    string `json:"invite_id"`
	RoleID      string `json:"role_id"`
	GigID       string `json:"gig_id"`
	GigTitle    string `json:"gig_title,omitempty"`
	Instrument  string `json:"instrument,omitempty"`
	MusicianID  string `json:"musician_id"`
	OrganizerID string `json:"organizer_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// ConfirmationPayload describes a confirmation being created or cancelled.
type ConfirmationPayload struct {
	ConfirmationID string    `json:"confirmation_id"`
	InviteID       string    `json:"invite_id"`
	RoleID         string    `json:"role_id"`
	GigID          string    `json:"gig_id"`
	GigTitle       string    `json:"gig_title,omitempty"`
	GigStartsAt    time.Time `json:"gig_starts_at"`
	MusicianID     string    `json:"musician_id"`
	OrganizerID    string    `json:"organizer_id"`
	ActorID        string    `json:"actor_id"`
	Initiator      string    `json:"initiator,omitempty"`
	Late           bool      `json:"late,omitempty"`
}

// SuspensionPayload describes a suspension issued by the cancellation policy.
type SuspensionPayload struct {
	SuspensionID string    `json:"suspension_id"`
	MusicianID   string    `json:"musician_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Reason       string    `json:"reason"`
}

// RatingPayload describes a submitted rating.
type RatingPayload struct {
	RatingID  string `json:"rating_id"`
	InviteID  string `json:"invite_id"`
	GigID     string `json:"gig_id"`
	RaterID   string `json:"rater_id"`
	RatedID   string `json:"rated_id"`
	RaterRole string `json:"rater_role"`
	Score     int    `json:"score"`
}

// Record appends an event to the outbox using tx, so it commits or rolls back
// with the state change it describes. The returned id can be handed to
// Dispatcher.Deliver once the transaction has committed.
func Record(tx *gorm.DB, eventType, aggregateID string, payload any, now time.Time) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("events: marshal %s payload: %w", eventType, err)
	}

	row := models.DomainEvent{
		BaseModel:     models.BaseModel{CreatedAt: now.UTC()},
		Type:          eventType,
		AggregateID:   aggregateID,
		Payload:       datatypes.JSON(raw),
		Status:        models.EventStatusPending,
		NextAttemptAt: now.UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return "", fmt.Errorf("events: record %s: %w", eventType, err)
	}
	return row.ID, nil
}

// Batch collects outbox ids written inside one transaction.
type Batch struct {
	tx  *gorm.DB
	now time.Time
	ids []string
}

// NewBatch starts collecting events for tx.
func NewBatch(tx *gorm.DB, now time.Time) *Batch {
	return &Batch{tx: tx, now: now}
}

// Add records one event.
func (b *Batch) Add(eventType, aggregateID string, payload any) error {
	id, err := Record(b.tx, eventType, aggregateID, payload, b.now)
	if err != nil {
		return err
	}
	b.ids = append(b.ids, id)
	return nil
}

// IDs returns the recorded event ids in insertion order.
func (b *Batch) IDs() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.ids...)
}

func toEvent(row models.DomainEvent) Event {
	return Event{
		ID:          row.ID,
		Type:        row.Type,
		AggregateID: row.AggregateID,
		Payload:     json.RawMessage(row.Payload),
		OccurredAt:  row.CreatedAt,
		Attempt:     row.Attempts + 1,
	}
}
