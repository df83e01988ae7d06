package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

func TestRatingServiceGate(t *testing.T) {
	f := newBookingFixture(t)
	org := f.organizer("Venue")
	alice := f.musician("Alice", nil, 50, "guitar")
	stranger := f.musician("Mallory", nil, 50, "guitar")
	role := f.role(f.gig(org.ID, 2*time.Hour, nil).ID, "guitar", 1)
	confirmation := f.booked(role, org.ID, alice.ID)
	svc := f.ratings()
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitRatingInput{InviteID: confirmation.InviteID, RaterID: org.ID, Score: 5})
	require.ErrorIs(t, err, apperrors.ErrForbidden, "the gig has not started yet")

	f.clock.Advance(2 * time.Hour)

	_, err = svc.Submit(ctx, SubmitRatingInput{InviteID: confirmation.InviteID, RaterID: org.ID, Score: 6})
	require.ErrorIs(t, err, apperrors.ErrInvalid)

	_, err = svc.Submit(ctx, SubmitRatingInput{InviteID: confirmation.InviteID, RaterID: stranger.ID, Score: 4})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	rating, err := svc.Submit(ctx, SubmitRatingInput{
		InviteID: confirmation.InviteID, RaterID: org.ID, Score: 5, Comment: " Great set ", Tags: []string{"punctual", ""},
	})
	require.NoError(t, err)
	require.Equal(t, models.RaterRoleOrganizer, rating.RaterRole)
	require.Equal(t, alice.ID, rating.RatedID)
	require.Equal(t, "Great set", rating.Comment)
	require.Equal(t, []string{"punctual"}, []string(rating.Tags))

	_, err = svc.Submit(ctx, SubmitRatingInput{InviteID: confirmation.InviteID, RaterID: org.ID, Score: 3})
	require.ErrorIs(t, err, apperrors.ErrConflict, "re-submission is rejected")

	back, err := svc.Submit(ctx, SubmitRatingInput{InviteID: confirmation.InviteID, RaterID: alice.ID, Score: 4})
	require.NoError(t, err)
	require.Equal(t, models.RaterRoleMusician, back.RaterRole)
	require.Equal(t, org.ID, back.RatedID)

	require.Contains(t, f.eventTypes(), events.TypeRatingSubmitted)
}

func TestRatingServiceRequiresConfirmedBooking(t *testing.T) {
	f := newBookingFixture(t)
	org := f.organizer("Venue")
	alice := f.musician("Alice", nil, 50, "guitar")
	role := f.role(f.gig(org.ID, time.Hour, nil).ID, "guitar", 1)
	invite := f.invite(role, org.ID, alice.ID, lifecycle.StatusAccepted)
	f.clock.Advance(2 * time.Hour)

	_, err := f.ratings().Submit(context.Background(), SubmitRatingInput{InviteID: invite.ID, RaterID: org.ID, Score: 4})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.ratings().Submit(context.Background(), SubmitRatingInput{InviteID: "00000000-0000-4000-8000-00000000dead", RaterID: org.ID, Score: 4})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRatingServiceSummaryAndProfileAggregate(t *testing.T) {
	f := newBookingFixture(t)
	org := f.organizer("Venue")
	alice := f.musician("Alice", nil, 50, "guitar")
	svc := f.ratings()
	f.dispatcher.Subscribe("ratings", svc.RefreshProfileAggregate, events.TypeRatingSubmitted)
	ctx := context.Background()

	for _, score := range []int{5, 3} {
		role := f.role(f.gig(org.ID, time.Hour, nil).ID, "guitar", 1)
		confirmation := f.booked(role, org.ID, alice.ID)
		f.clock.Advance(2 * time.Hour)
		_, err := svc.Submit(ctx, SubmitRatingInput{InviteID: confirmation.InviteID, RaterID: org.ID, Score: score})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Count)
	require.InDelta(t, 4.0, summary.Average, 1e-9)
	require.Equal(t, 1, summary.Distribution[5])
	require.Equal(t, 1, summary.Distribution[3])
	require.Equal(t, 0, summary.Distribution[1])

	list, err := svc.ListFor(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	profile, err := f.musicians().GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, profile.RatingCount)
	require.InDelta(t, 4.0, profile.RatingAverage, 1e-9)
}
