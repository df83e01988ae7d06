package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/policy"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/metrics"
)

// SubmitRatingInput is a participant's score for the other side of a booking.
type SubmitRatingInput struct {
	InviteID string
	RaterID  string
	Score    int
	Comment  string
	Tags     []string
}

// RatingSummary aggregates the ratings a user has received.
type RatingSummary struct {
	UserID       string      `json:"user_id"`
	Count        int         `json:"count"`
	Average      float64     `json:"average"`
	Distribution map[int]int `json:"distribution"`
}

// RatingOption customises RatingService behaviour.
type RatingOption func(*RatingService)

// WithRatingClock injects a custom clock primarily for testing.
func WithRatingClock(clock func() time.Time) RatingOption {
	return func(s *RatingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// RatingService records post-gig ratings behind the rating gate.
type RatingService struct {
	db     *gorm.DB
	events *events.Dispatcher
	now    func() time.Time
}

// NewRatingService constructs a RatingService.
func NewRatingService(db *gorm.DB, dispatcher *events.Dispatcher, opts ...RatingOption) (*RatingService, error) {
	if db == nil {
		return nil, errors.New("rating service: db is required")
	}
	svc := &RatingService{db: db, events: dispatcher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit stores a rating once the gig has started. Each participant may rate
// a booking once; the rated party is always the other participant.
func (s *RatingService) Submit(ctx context.Context, input SubmitRatingInput) (*models.Rating, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	if err := policy.ValidateScore(input.Score); err != nil {
		return nil, err
	}

	var (
		rating  models.Rating
		eventID string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		if err := tx.Preload("Gig").First(&invite, "id = ?", input.InviteID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("invite")
			}
			return fmt.Errorf("rating service: load invite: %w", err)
		}

		var existing []string
		if err := tx.Model(&models.Rating{}).Where("invite_id = ?", invite.ID).Pluck("rater_role", &existing).Error; err != nil {
			return fmt.Errorf("rating service: load existing ratings: %w", err)
		}

		eligibility, err := policy.CanRate(policy.RatingContext{
			Invite:             &invite,
			Gig:                invite.Gig,
			RaterID:            input.RaterID,
			ExistingRaterRoles: existing,
			Now:                now,
		})
		if err != nil {
			return err
		}

		rating = models.Rating{
			InviteID:  invite.ID,
			GigID:     invite.GigID,
			RaterID:   input.RaterID,
			RatedID:   eligibility.RatedID,
			RaterRole: eligibility.RaterRole,
			Score:     input.Score,
			Comment:   strings.TrimSpace(input.Comment),
			Tags:      normaliseStrings(input.Tags),
		}
		if err := tx.Create(&rating).Error; err != nil {
			if isUniqueConstraintError(err) {
				return policy.ErrAlreadyRated.WithInternal(err)
			}
			return fmt.Errorf("rating service: create rating: %w", err)
		}

		eventID, err = events.Record(tx, events.TypeRatingSubmitted, rating.ID, events.RatingPayload{
			RatingID:  rating.ID,
			InviteID:  rating.InviteID,
			GigID:     rating.GigID,
			RaterID:   rating.RaterID,
			RatedID:   rating.RatedID,
			RaterRole: rating.RaterRole,
			Score:     rating.Score,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.Ratings.WithLabelValues(rating.RaterRole).Inc()
	s.events.Deliver(ctx, eventID)
	return &rating, nil
}

// ListFor returns ratings received by userID, newest first.
func (s *RatingService) ListFor(ctx context.Context, userID string, limit, offset int) ([]models.Rating, error) {
	var ratings []models.Rating
	if err := s.db.WithContext(ensureContext(ctx)).
		Where("rated_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit, 25, 100)).
		Offset(max(0, offset)).
		Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("rating service: list ratings: %w", err)
	}
	return ratings, nil
}

// Summary aggregates every rating received by userID.
func (s *RatingService) Summary(ctx context.Context, userID string) (*RatingSummary, error) {
	var rows []struct {
		Score int
		Total int
	}
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Rating{}).
		Select("score, COUNT(*) AS total").
		Where("rated_id = ?", userID).
		Group("score").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("rating service: summarise ratings: %w", err)
	}

	summary := &RatingSummary{UserID: userID, Distribution: make(map[int]int, policy.MaxScore)}
	for score := policy.MinScore; score <= policy.MaxScore; score++ {
		summary.Distribution[score] = 0
	}
	sum := 0
	for _, row := range rows {
		summary.Distribution[row.Score] = row.Total
		summary.Count += row.Total
		sum += row.Score * row.Total
	}
	if summary.Count > 0 {
		summary.Average = float64(sum) / float64(summary.Count)
	}
	return summary, nil
}

// RefreshProfileAggregate recomputes the rated musician's profile average.
// It runs as a rating.submitted subscriber; organizers have no profile and
// are skipped.
func (s *RatingService) RefreshProfileAggregate(ctx context.Context, event events.Event) error {
	var payload events.RatingPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	if payload.RaterRole != models.RaterRoleOrganizer {
		return nil
	}
	summary, err := s.Summary(ctx, payload.RatedID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.MusicianProfile{}).
		Where("user_id = ?", payload.RatedID).
		Updates(map[string]any{
			"rating_average": summary.Average,
			"rating_count":   summary.Count,
		}).Error; err != nil {
		return fmt.Errorf("rating service: refresh profile aggregate: %w", err)
	}
	return nil
}
