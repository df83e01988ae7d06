package policy

import (
	"time"

	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

// Score bounds for ratings.
const (
	MinScore = 1
	MaxScore = 5
)

var (
	ErrGigNotCompleted   = apperrors.Forbidden("gig has not taken place yet")
	ErrInviteNotBooked   = apperrors.Forbidden("only confirmed bookings can be rated")
	ErrNotParticipant    = apperrors.Forbidden("only the organizer or the booked musician may rate")
	ErrAlreadyRated      = apperrors.Conflict("rating already submitted for this booking")
	ErrScoreOutOfRange   = apperrors.Invalid("score must be between 1 and 5")
	ErrMissingRatingData = apperrors.Invalid("invite and gig are required")
)

// RatingContext is everything the gate needs to decide eligibility.
type RatingContext struct {
	Invite  *models.Invite
	Gig     *models.Gig
	RaterID string
	// ExistingRaterRoles lists rater roles that already rated this invite.
	ExistingRaterRoles []string
	Now                time.Time
}

// Eligibility names the rater's role and the party being rated.
type Eligibility struct {
	RaterRole string `json:"rater_role"`
	RatedID   string `json:"rated_id"`
}

// CanRate decides whether RaterID may rate the other participant of the invite.
func CanRate(rc RatingContext) (Eligibility, error) {
	if rc.Invite == nil || rc.Gig == nil {
		return Eligibility{}, ErrMissingRatingData
	}
	if !IsCompleted(rc.Gig, rc.Now) {
		return Eligibility{}, ErrGigNotCompleted
	}
	if rc.Invite.Status != lifecycle.StatusConfirmed {
		return Eligibility{}, ErrInviteNotBooked
	}

	var eligibility Eligibility
	switch rc.RaterID {
	case "":
		return Eligibility{}, ErrNotParticipant
	case rc.Invite.OrganizerID:
		eligibility = Eligibility{RaterRole: models.RaterRoleOrganizer, RatedID: rc.Invite.MusicianID}
	case rc.Invite.MusicianID:
		eligibility = Eligibility{RaterRole: models.RaterRoleMusician, RatedID: rc.Invite.OrganizerID}
	default:
		return Eligibility{}, ErrNotParticipant
	}
	if eligibility.RatedID == "" || eligibility.RatedID == rc.RaterID {
		return Eligibility{}, ErrNotParticipant
	}

	for _, role := range rc.ExistingRaterRoles {
		if role == eligibility.RaterRole {
			return Eligibility{}, ErrAlreadyRated
		}
	}
	return eligibility, nil
}

// ValidateScore rejects scores outside 1..5.
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return ErrScoreOutOfRange
	}
	return nil
}
