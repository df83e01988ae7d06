// Package policy holds the time-based booking rules: cancellation penalties,
// rating eligibility and the completion predicate they share.
package policy

import (
	"time"

	"github.com/charlesng35/gigbook/internal/models"
)

// IsCompleted reports whether a gig counts as having happened. There is no
// explicit completed status: a gig is treated as completed once it has started.
func IsCompleted(gig *models.Gig, now time.Time) bool {
	if gig == nil || gig.StartsAt.IsZero() {
		return false
	}
	return !now.Before(gig.StartsAt)
}

// HasStarted reports whether invitations for the gig should be refused.
func HasStarted(gig *models.Gig, now time.Time) bool {
	return IsCompleted(gig, now)
}
