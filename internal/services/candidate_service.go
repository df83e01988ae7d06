package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/geo"
	"github.com/charlesng35/gigbook/internal/matching"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/metrics"
)

// CandidateDTO is one eligible musician for a role, nearest first.
type CandidateDTO struct {
	MusicianID     string   `json:"musician_id"`
	DisplayName    string   `json:"display_name"`
	Instruments    []string `json:"instruments"`
	SearchRadiusKm float64  `json:"search_radius_km"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`
	TravelMinutes  *int     `json:"travel_minutes,omitempty"`
	RatingAverage  float64  `json:"rating_average"`
	RatingCount    int      `json:"rating_count"`
	// InviteStatus is the status of the musician's latest invite for this role, if any.
	InviteStatus string `json:"invite_status,omitempty"`
}

// CandidateOption customises CandidateService behaviour.
type CandidateOption func(*CandidateService)

// WithCandidateClock injects a custom clock primarily for testing.
func WithCandidateClock(clock func() time.Time) CandidateOption {
	return func(s *CandidateService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// CandidateService answers "who can be invited to this role".
type CandidateService struct {
	db      *gorm.DB
	matcher *matching.Matcher
	now     func() time.Time
}

// NewCandidateService constructs a CandidateService around the matcher.
func NewCandidateService(db *gorm.DB, matcher *matching.Matcher, opts ...CandidateOption) (*CandidateService, error) {
	if db == nil {
		return nil, errors.New("candidate service: db is required")
	}
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	svc := &CandidateService{db: db, matcher: matcher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ListCandidates returns the musicians eligible for roleID. Profiles are read
// straight from the store on every call; suspended musicians are left out
// because they cannot receive invites.
func (s *CandidateService) ListCandidates(ctx context.Context, roleID, actorID string) ([]CandidateDTO, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var role models.GigRole
	if err := db.Preload("Gig").First(&role, "id = ?", roleID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("role")
		}
		return nil, fmt.Errorf("candidate service: load role: %w", err)
	}
	if role.Gig == nil || role.Gig.OrganizerID != actorID {
		return nil, apperrors.Forbidden("only the gig organizer may list candidates")
	}

	var profiles []models.MusicianProfile
	if err := db.Preload("User").Order("created_at ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("candidate service: load profiles: %w", err)
	}

	snapshot := make([]matching.Profile, 0, len(profiles))
	byMusician := make(map[string]*models.MusicianProfile, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		byMusician[p.UserID] = p
		location, _ := geo.PointFrom(p.Latitude, p.Longitude)
		snapshot = append(snapshot, matching.Profile{
			MusicianID:     p.UserID,
			Instruments:    p.Instruments,
			Location:       location,
			SearchRadiusKm: p.SearchRadiusKm,
		})
	}

	gigLocation, _ := geo.PointFrom(role.Gig.Latitude, role.Gig.Longitude)
	matched := s.matcher.Match(matching.Role{Instrument: role.Instrument, Location: gigLocation}, snapshot)

	ids := make([]string, 0, len(matched))
	for _, c := range matched {
		ids = append(ids, c.Profile.MusicianID)
	}
	suspended, err := activeSuspensions(db, ids, s.now())
	if err != nil {
		return nil, fmt.Errorf("candidate service: %w", err)
	}
	inviteStatus, err := latestInviteStatus(db, role.ID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CandidateDTO, 0, len(matched))
	for _, c := range matched {
		if _, blocked := suspended[c.Profile.MusicianID]; blocked {
			continue
		}
		p := byMusician[c.Profile.MusicianID]
		dto := CandidateDTO{
			MusicianID:     p.UserID,
			Instruments:    p.Instruments,
			SearchRadiusKm: p.SearchRadiusKm,
			DistanceKm:     c.DistanceKm,
			TravelMinutes:  c.TravelMinutes,
			RatingAverage:  p.RatingAverage,
			RatingCount:    p.RatingCount,
			InviteStatus:   inviteStatus[p.UserID],
		}
		if p.User != nil {
			dto.DisplayName = p.User.DisplayName
		}
		out = append(out, dto)
	}

	metrics.CandidateListSize.Observe(float64(len(out)))
	return out, nil
}

func latestInviteStatus(db *gorm.DB, roleID string, musicianIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(musicianIDs) == 0 {
		return out, nil
	}
	var invites []models.Invite
	if err := db.Select("musician_id", "status", "created_at").
		Where("role_id = ? AND musician_id IN ?", roleID, musicianIDs).
		Order("created_at ASC").
		Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("candidate service: load invites: %w", err)
	}
	for _, invite := range invites {
		out[invite.MusicianID] = invite.Status
	}
	return out, nil
}
