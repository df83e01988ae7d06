package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gigbook/internal/matching"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/validator"
)

// ProfileInput carries the matching attributes a musician maintains.
type ProfileInput struct {
	Instruments    []string
	Latitude       *float64
	Longitude      *float64
	SearchRadiusKm float64
	Bio            string
}

// MusicianOption customises MusicianService behaviour.
type MusicianOption func(*MusicianService)

// WithMusicianClock injects a custom clock primarily for testing.
func WithMusicianClock(clock func() time.Time) MusicianOption {
	return func(s *MusicianService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// MusicianService owns musician profiles and exposes suspension state.
type MusicianService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMusicianService constructs a MusicianService.
func NewMusicianService(db *gorm.DB, opts ...MusicianOption) (*MusicianService, error) {
	if db == nil {
		return nil, errors.New("musician service: db is required")
	}
	svc := &MusicianService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UpsertProfile creates or replaces the musician's matching profile.
// Rating aggregates are left untouched.
func (s *MusicianService) UpsertProfile(ctx context.Context, musicianID string, input ProfileInput) (*models.MusicianProfile, error) {
	ctx = ensureContext(ctx)
	if _, err := requireKind(s.db.WithContext(ctx), musicianID, models.UserKindMusician); err != nil {
		return nil, err
	}

	instruments := matching.NormalizeInstruments(input.Instruments)
	if len(instruments) == 0 {
		return nil, apperrors.Invalid("at least one instrument is required")
	}
	for _, instrument := range instruments {
		if !validator.IsInstrument(instrument) {
			return nil, apperrors.Invalid(fmt.Sprintf("invalid instrument %q", instrument))
		}
	}

	radius := input.SearchRadiusKm
	if radius == 0 {
		radius = models.DefaultSearchRadiusKm
	}
	if radius < 0 {
		return nil, apperrors.Invalid("search radius must be positive")
	}

	lat, lon, err := coordinates(input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}

	profile := models.MusicianProfile{
		UserID:         musicianID,
		Instruments:    instruments,
		Latitude:       lat,
		Longitude:      lon,
		SearchRadiusKm: radius,
		Bio:            strings.TrimSpace(input.Bio),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"instruments", "latitude", "longitude", "search_radius_km", "bio", "updated_at"}),
		}).
		Create(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("musician service: upsert profile: %w", err)
	}
	return s.GetProfile(ctx, musicianID)
}

// GetProfile returns a musician's profile.
func (s *MusicianService) GetProfile(ctx context.Context, musicianID string) (*models.MusicianProfile, error) {
	var profile models.MusicianProfile
	err := s.db.WithContext(ensureContext(ctx)).Preload("User").First(&profile, "user_id = ?", musicianID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("musician profile")
		}
		return nil, fmt.Errorf("musician service: get profile: %w", err)
	}
	return &profile, nil
}

// ActiveSuspension returns the musician's current suspension, or nil.
func (s *MusicianService) ActiveSuspension(ctx context.Context, musicianID string) (*models.Suspension, error) {
	suspension, err := activeSuspension(s.db.WithContext(ensureContext(ctx)), musicianID, s.now())
	if err != nil {
		return nil, fmt.Errorf("musician service: %w", err)
	}
	return suspension, nil
}

// SuspensionStatus is the musician-facing view of an active suspension.
type SuspensionStatus struct {
	Suspended        bool               `json:"suspended"`
	Suspension       *models.Suspension `json:"suspension,omitempty"`
	SuspendedUntil   *time.Time         `json:"suspended_until,omitempty"`
	RemainingSeconds int64              `json:"remaining_seconds"`
}

// SuspensionStatus reports whether the musician may currently receive invites.
func (s *MusicianService) SuspensionStatus(ctx context.Context, musicianID string) (*SuspensionStatus, error) {
	suspension, err := s.ActiveSuspension(ctx, musicianID)
	if err != nil {
		return nil, err
	}
	if suspension == nil {
		return &SuspensionStatus{}, nil
	}
	until := suspension.EndsAt.UTC()
	return &SuspensionStatus{
		Suspended:        true,
		Suspension:       suspension,
		SuspendedUntil:   &until,
		RemainingSeconds: int64(max(until.Sub(s.now()), 0).Seconds()),
	}, nil
}
