package policy

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/models"
)

func TestIsCompleted(t *testing.T) {
	Convey("A gig is completed once its start time has passed", t, func() {
		start := time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC)
		gig := &models.Gig{StartsAt: start}

		So(IsCompleted(gig, start.Add(-time.Minute)), ShouldBeFalse)
		So(IsCompleted(gig, start), ShouldBeTrue)
		So(IsCompleted(gig, start.Add(time.Hour)), ShouldBeTrue)
		So(IsCompleted(nil, start), ShouldBeFalse)
		So(IsCompleted(&models.Gig{}, start), ShouldBeFalse)
	})
}

func TestCanRate(t *testing.T) {
	Convey("Given a confirmed booking for a gig", t, func() {
		start := time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC)
		gig := &models.Gig{StartsAt: start}
		invite := &models.Invite{OrganizerID: "org", MusicianID: "mus", Status: lifecycle.StatusConfirmed}
		rc := RatingContext{Invite: invite, Gig: gig, Now: start.Add(3 * time.Hour)}

		Convey("The organizer rates the musician", func() {
			rc.RaterID = "org"
			e, err := CanRate(rc)
			So(err, ShouldBeNil)
			So(e.RaterRole, ShouldEqual, models.RaterRoleOrganizer)
			So(e.RatedID, ShouldEqual, "mus")
		})

		Convey("The musician rates the organizer", func() {
			rc.RaterID = "mus"
			e, err := CanRate(rc)
			So(err, ShouldBeNil)
			So(e.RaterRole, ShouldEqual, models.RaterRoleMusician)
			So(e.RatedID, ShouldEqual, "org")
		})

		Convey("Rating before the gig starts is rejected", func() {
			rc.RaterID = "org"
			rc.Now = start.Add(-time.Second)
			_, err := CanRate(rc)
			So(err, ShouldEqual, ErrGigNotCompleted)
		})

		Convey("A second rating from the same side is rejected", func() {
			rc.RaterID = "mus"
			rc.ExistingRaterRoles = []string{models.RaterRoleMusician}
			_, err := CanRate(rc)
			So(err, ShouldEqual, ErrAlreadyRated)

			rc.RaterID = "org"
			_, err = CanRate(rc)
			So(err, ShouldBeNil)
		})

		Convey("An outsider cannot rate", func() {
			rc.RaterID = "stranger"
			_, err := CanRate(rc)
			So(err, ShouldEqual, ErrNotParticipant)

			rc.RaterID = ""
			_, err = CanRate(rc)
			So(err, ShouldEqual, ErrNotParticipant)
		})

		Convey("An invite that was never confirmed cannot be rated", func() {
			invite.Status = lifecycle.StatusAccepted
			rc.RaterID = "org"
			_, err := CanRate(rc)
			So(err, ShouldEqual, ErrInviteNotBooked)
		})

		Convey("Missing data is invalid", func() {
			_, err := CanRate(RatingContext{RaterID: "org"})
			So(err, ShouldEqual, ErrMissingRatingData)
		})
	})
}

func TestValidateScore(t *testing.T) {
	Convey("Scores must be within 1..5", t, func() {
		for score := MinScore; score <= MaxScore; score++ {
			So(ValidateScore(score), ShouldBeNil)
		}
		So(ValidateScore(0), ShouldEqual, ErrScoreOutOfRange)
		So(ValidateScore(6), ShouldEqual, ErrScoreOutOfRange)
	})
}
