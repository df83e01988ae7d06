package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/database/testutil"
	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/policy"
)

var (
	nashville = [2]float64{36.1627, -86.7816}
	franklin  = [2]float64{35.9251, -86.8689}
	memphis   = [2]float64{35.1495, -90.0490}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// bookingFixture wires the booking services against a private in-memory database.
type bookingFixture struct {
	t          *testing.T
	db         *gorm.DB
	clock      *testClock
	dispatcher *events.Dispatcher
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	dispatcher, err := events.NewDispatcher(db, events.WithClock(clock.Now))
	require.NoError(t, err)
	return &bookingFixture{t: t, db: db, clock: clock, dispatcher: dispatcher}
}

func (f *bookingFixture) organizer(name string) models.User {
	f.t.Helper()
	user := models.User{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		DisplayName: name,
		Email:       uuid.NewString() + "@organizers.test",
		Kind:        models.UserKindOrganizer,
	}
	testutil.Seed(f.t, f.db, &user)
	return user
}

func (f *bookingFixture) musician(name string, at *[2]float64, radiusKm float64, instruments ...string) models.User {
	f.t.Helper()
	user := models.User{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		DisplayName: name,
		Email:       uuid.NewString() + "@musicians.test",
		Kind:        models.UserKindMusician,
	}
	testutil.Seed(f.t, f.db, &user)

	profile := models.MusicianProfile{UserID: user.ID, Instruments: instruments, SearchRadiusKm: radiusKm}
	if at != nil {
		lat, lon := at[0], at[1]
		profile.Latitude, profile.Longitude = &lat, &lon
	}
	testutil.Seed(f.t, f.db, &profile)
	return user
}

// gig creates a published gig starting startsIn after the fixture clock.
func (f *bookingFixture) gig(organizerID string, startsIn time.Duration, at *[2]float64) models.Gig {
	f.t.Helper()
	start := f.clock.Now().Add(startsIn)
	published := f.clock.Now()
	gig := models.Gig{
		OrganizerID: organizerID,
		Title:       "Friday showcase",
		StartsAt:    start,
		EndsAt:      start.Add(3 * time.Hour),
		City:        "Nashville",
		State:       "TN",
		Status:      models.GigStatusPublished,
		PublishedAt: &published,
	}
	if at != nil {
		lat, lon := at[0], at[1]
		gig.Latitude, gig.Longitude = &lat, &lon
	}
	testutil.Seed(f.t, f.db, &gig)
	return gig
}

func (f *bookingFixture) role(gigID, instrument string, quantity int) models.GigRole {
	f.t.Helper()
	role := models.GigRole{GigID: gigID, Instrument: instrument, Quantity: quantity, Currency: "USD"}
	testutil.Seed(f.t, f.db, &role)
	return role
}

func (f *bookingFixture) invite(role models.GigRole, organizerID, musicianID, status string) models.Invite {
	f.t.Helper()
	invite := models.Invite{RoleID: role.ID, GigID: role.GigID, MusicianID: musicianID, OrganizerID: organizerID, Status: status}
	testutil.Seed(f.t, f.db, &invite)
	return invite
}

func (f *bookingFixture) reload(id string) models.Invite {
	f.t.Helper()
	var invite models.Invite
	require.NoError(f.t, f.db.First(&invite, "id = ?", id).Error)
	return invite
}

func (f *bookingFixture) gigs() *GigService {
	svc, err := NewGigService(f.db, f.dispatcher, WithGigClock(f.clock.Now))
	require.NoError(f.t, err)
	return svc
}

func (f *bookingFixture) invites(opts ...InviteOption) *InviteService {
	opts = append([]InviteOption{WithInviteClock(f.clock.Now)}, opts...)
	svc, err := NewInviteService(f.db, f.dispatcher, opts...)
	require.NoError(f.t, err)
	return svc
}

func (f *bookingFixture) confirmations() *ConfirmationService {
	svc, err := NewConfirmationService(f.db, policy.NewCancellationPolicy(policy.DefaultCancellationConfig()), f.dispatcher, WithConfirmationClock(f.clock.Now))
	require.NoError(f.t, err)
	return svc
}

func (f *bookingFixture) ratings() *RatingService {
	svc, err := NewRatingService(f.db, f.dispatcher, WithRatingClock(f.clock.Now))
	require.NoError(f.t, err)
	return svc
}

func (f *bookingFixture) candidates() *CandidateService {
	svc, err := NewCandidateService(f.db, nil, WithCandidateClock(f.clock.Now))
	require.NoError(f.t, err)
	return svc
}

func (f *bookingFixture) musicians() *MusicianService {
	svc, err := NewMusicianService(f.db, WithMusicianClock(f.clock.Now))
	require.NoError(f.t, err)
	return svc
}

// booked drives a fresh invite to confirmed and returns the confirmation.
func (f *bookingFixture) booked(role models.GigRole, organizerID, musicianID string) *models.Confirmation {
	f.t.Helper()
	invite := f.invite(role, organizerID, musicianID, lifecycle.StatusAccepted)
	confirmation, err := f.confirmations().Confirm(context.Background(), role.ID, invite.ID, organizerID)
	require.NoError(f.t, err)
	return confirmation
}

func (f *bookingFixture) eventTypes() []string {
	f.t.Helper()
	var types []string
	require.NoError(f.t, f.db.Model(&models.DomainEvent{}).Order("created_at ASC").Pluck("type", &types).Error)
	return types
}
