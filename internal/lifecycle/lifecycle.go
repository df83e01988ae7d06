// Package lifecycle defines the invite state machine and applies guarded
// status changes to persisted invites.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/models"
)

// Invite statuses.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Close reasons recorded on invites that leave the open set.
const (
	ReasonDeclined              = "declined"
	ReasonWithdrawn             = "withdrawn"
	ReasonRoleFilled            = "role_filled"
	ReasonConfirmationCancelled = "confirmation_cancelled"
	ReasonGigCancelled          = "gig_cancelled"
)

var (
	// ErrInvalidTransition is returned when the table does not allow from -> to.
	ErrInvalidTransition = errors.New("lifecycle: invalid status transition")
	// ErrStaleStatus is returned when the stored status no longer matches the expected source.
	ErrStaleStatus = errors.New("lifecycle: invite status changed concurrently")
)

// confirmed -> cancelled is reserved for the confirmation cancel path; callers
// that only handle musician responses or withdrawals must not reach it.
var transitions = map[string]map[string]struct{}{
	StatusPending: {
		StatusAccepted:  {},
		StatusDeclined:  {},
		StatusCancelled: {},
	},
	StatusAccepted: {
		StatusConfirmed: {},
		StatusCancelled: {},
	},
	StatusConfirmed: {
		StatusCancelled: {},
	},
	StatusDeclined:  {},
	StatusCancelled: {},
}

// CanTransition reports whether an invite may move from one status to another.
// Self transitions are rejected so a repeated action is observed as a conflict.
func CanTransition(from, to string) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsOpen reports whether an invite still counts toward the one-open-invite-per-role rule.
func IsOpen(status string) bool {
	return status == StatusPending || status == StatusAccepted
}

// IsTerminal reports whether no further musician response is possible.
func IsTerminal(status string) bool {
	switch status {
	case StatusDeclined, StatusCancelled, StatusConfirmed:
		return true
	default:
		return false
	}
}

// OpenStatuses lists the non-terminal statuses for use in IN queries.
func OpenStatuses() []string {
	return []string{StatusPending, StatusAccepted}
}

// Change describes a single guarded status update.
type Change struct {
	InviteID string
	From     string
	To       string
	At       time.Time
	// Reason is stored as close_reason when the invite leaves the open set.
	Reason string
}

// Apply moves the invite from Change.From to Change.To using an optimistic
// status guard. It returns ErrStaleStatus when no row matched, which means
// another request already moved the invite.
func Apply(tx *gorm.DB, change Change) error {
	if !CanTransition(change.From, change.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, change.From, change.To)
	}

	at := change.At.UTC()
	updates := map[string]any{
		"status":     change.To,
		"updated_at": at,
	}
	if change.From == StatusPending {
		updates["responded_at"] = at
	}
	if change.To == StatusDeclined || change.To == StatusCancelled {
		updates["closed_at"] = at
		updates["close_reason"] = change.Reason
	}

	res := tx.Model(&models.Invite{}).
		Where("id = ? AND status = ?", change.InviteID, change.From).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("lifecycle: apply %s -> %s: %w", change.From, change.To, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// CloseOpenSiblings cancels every open invite for roleID except keepID and
// returns the ids it closed.
func CloseOpenSiblings(tx *gorm.DB, roleID, keepID string, at time.Time, reason string) ([]string, error) {
	var ids []string
	query := tx.Model(&models.Invite{}).
		Where("role_id = ? AND status IN ?", roleID, OpenStatuses())
	if keepID != "" {
		query = query.Where("id <> ?", keepID)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("lifecycle: list open siblings: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	at = at.UTC()
	res := tx.Model(&models.Invite{}).
		Where("id IN ? AND status IN ?", ids, OpenStatuses()).
		Updates(map[string]any{
			"status":       StatusCancelled,
			"closed_at":    at,
			"close_reason": reason,
			"updated_at":   at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("lifecycle: close open siblings: %w", res.Error)
	}
	return ids, nil
}
