package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/matching"
	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/policy"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/validator"
)

// GigInput carries the editable attributes of a gig.
type GigInput struct {
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Address     string
	City        string
	State       string
	Latitude    *float64
	Longitude   *float64
}

// RoleInput describes a staffing need added to a gig.
type RoleInput struct {
	Instrument string
	Quantity   int
	Genres     []string
	Skills     []string
	Equipment  []string
	RateCents  int64
	Currency   string
}

// GigOption customises GigService behaviour.
type GigOption func(*GigService)

// WithGigClock injects a custom clock primarily for testing.
func WithGigClock(clock func() time.Time) GigOption {
	return func(s *GigService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// GigService manages gigs and their roles on behalf of organizers.
type GigService struct {
	db     *gorm.DB
	events *events.Dispatcher
	now    func() time.Time
}

// NewGigService constructs a GigService.
func NewGigService(db *gorm.DB, dispatcher *events.Dispatcher, opts ...GigOption) (*GigService, error) {
	if db == nil {
		return nil, errors.New("gig service: db is required")
	}
	svc := &GigService{db: db, events: dispatcher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create stores a new draft gig owned by the organizer.
func (s *GigService) Create(ctx context.Context, organizerID string, input GigInput) (*models.Gig, error) {
	ctx = ensureContext(ctx)
	if _, err := requireKind(s.db.WithContext(ctx), organizerID, models.UserKindOrganizer); err != nil {
		return nil, err
	}

	gig := models.Gig{OrganizerID: organizerID, Status: models.GigStatusDraft}
	if err := applyGigInput(&gig, input); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&gig).Error; err != nil {
		return nil, fmt.Errorf("gig service: create gig: %w", err)
	}
	return &gig, nil
}

// Get returns a gig with its roles.
func (s *GigService) Get(ctx context.Context, gigID string) (*models.Gig, error) {
	var gig models.Gig
	err := s.db.WithContext(ensureContext(ctx)).
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&gig, "id = ?", gigID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("gig")
		}
		return nil, fmt.Errorf("gig service: get gig: %w", err)
	}
	return &gig, nil
}

// ListForOrganizer returns the organizer's gigs, soonest first.
func (s *GigService) ListForOrganizer(ctx context.Context, organizerID string) ([]models.Gig, error) {
	var gigs []models.Gig
	if err := s.db.WithContext(ensureContext(ctx)).
		Preload("Roles").
		Where("organizer_id = ?", organizerID).
		Order("starts_at ASC").
		Find(&gigs).Error; err != nil {
		return nil, fmt.Errorf("gig service: list gigs: %w", err)
	}
	return gigs, nil
}

// Update edits a gig. Edits are refused once any role has a confirmed musician.
func (s *GigService) Update(ctx context.Context, gigID, organizerID string, input GigInput) (*models.Gig, error) {
	ctx = ensureContext(ctx)

	var gig models.Gig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwnedGig(tx, gigID, organizerID, &gig); err != nil {
			return err
		}
		if gig.Status == models.GigStatusCancelled {
			return errGigNotOpen
		}

		var confirmed int64
		if err := tx.Model(&models.Confirmation{}).Where("gig_id = ?", gig.ID).Count(&confirmed).Error; err != nil {
			return fmt.Errorf("gig service: count confirmations: %w", err)
		}
		if confirmed > 0 {
			return apperrors.Conflict("gig can no longer be edited after a musician is confirmed")
		}

		if err := applyGigInput(&gig, input); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&gig).Error; err != nil {
			return fmt.Errorf("gig service: update gig: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &gig, nil
}

// Publish opens a draft gig for invitations.
func (s *GigService) Publish(ctx context.Context, gigID, organizerID string) (*models.Gig, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var gig models.Gig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwnedGig(tx, gigID, organizerID, &gig); err != nil {
			return err
		}
		switch gig.Status {
		case models.GigStatusPublished:
			return nil
		case models.GigStatusCancelled:
			return errGigNotOpen
		}
		if policy.HasStarted(&gig, now) {
			return errGigStarted
		}

		var roles int64
		if err := tx.Model(&models.GigRole{}).Where("gig_id = ?", gig.ID).Count(&roles).Error; err != nil {
			return fmt.Errorf("gig service: count roles: %w", err)
		}
		if roles == 0 {
			return apperrors.Invalid("a gig needs at least one role before it can be published")
		}

		gig.Status = models.GigStatusPublished
		gig.PublishedAt = &now
		if err := tx.Model(&gig).Updates(map[string]any{
			"status":       gig.Status,
			"published_at": now,
		}).Error; err != nil {
			return fmt.Errorf("gig service: publish gig: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &gig, nil
}

// Cancel soft-deletes a gig. Every open invite is withdrawn and every
// confirmation is cancelled on the organizer's initiative, which never
// suspends a musician.
func (s *GigService) Cancel(ctx context.Context, gigID, organizerID string) (*models.Gig, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var (
		gig      models.Gig
		eventIDs []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwnedGig(tx, gigID, organizerID, &gig); err != nil {
			return err
		}
		if gig.Status == models.GigStatusCancelled {
			return nil
		}
		batch := events.NewBatch(tx, now)

		var open []models.Invite
		if err := tx.Where("gig_id = ? AND status IN ?", gig.ID, lifecycle.OpenStatuses()).Find(&open).Error; err != nil {
			return fmt.Errorf("gig service: list open invites: %w", err)
		}
		for _, invite := range open {
			if err := lifecycle.Apply(tx, lifecycle.Change{
				InviteID: invite.ID, From: invite.Status, To: lifecycle.StatusCancelled,
				At: now, Reason: lifecycle.ReasonGigCancelled,
			}); err != nil {
				return transitionError(err)
			}
			if err := batch.Add(events.TypeInviteWithdrawn, invite.ID, invitePayload(&invite, &gig, nil, lifecycle.StatusCancelled, lifecycle.ReasonGigCancelled)); err != nil {
				return err
			}
		}

		var confirmations []models.Confirmation
		if err := tx.Where("gig_id = ?", gig.ID).Find(&confirmations).Error; err != nil {
			return fmt.Errorf("gig service: list confirmations: %w", err)
		}
		for i := range confirmations {
			if _, err := cancelConfirmationInTx(tx, batch, nil, cancelInput{
				confirmation: &confirmations[i],
				gig:          &gig,
				actorID:      organizerID,
				initiator:    models.InitiatorOrganizer,
				reason:       lifecycle.ReasonGigCancelled,
				now:          now,
			}); err != nil {
				return err
			}
		}

		gig.Status = models.GigStatusCancelled
		gig.CancelledAt = &now
		if err := tx.Model(&gig).Updates(map[string]any{
			"status":       gig.Status,
			"cancelled_at": now,
		}).Error; err != nil {
			return fmt.Errorf("gig service: cancel gig: %w", err)
		}
		eventIDs = batch.IDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Deliver(ctx, eventIDs...)
	return &gig, nil
}

// AddRole appends a staffing need to a gig that has not started.
func (s *GigService) AddRole(ctx context.Context, gigID, organizerID string, input RoleInput) (*models.GigRole, error) {
	ctx = ensureContext(ctx)

	instrument := matching.NormalizeInstrument(input.Instrument)
	if !validator.IsInstrument(instrument) {
		return nil, apperrors.Invalid("instrument is required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, apperrors.Invalid("quantity must be at least 1")
	}
	if input.RateCents < 0 {
		return nil, apperrors.Invalid("rate must not be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(defaultIfEmpty(input.Currency, "USD")))
	if len(currency) != 3 {
		return nil, apperrors.Invalid("currency must be a three letter code")
	}

	role := models.GigRole{
		GigID:      gigID,
		Instrument: instrument,
		Quantity:   quantity,
		Genres:     normaliseStrings(input.Genres),
		Skills:     normaliseStrings(input.Skills),
		Equipment:  normaliseStrings(input.Equipment),
		RateCents:  input.RateCents,
		Currency:   currency,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gig models.Gig
		if err := s.loadOwnedGig(tx, gigID, organizerID, &gig); err != nil {
			return err
		}
		if gig.Status == models.GigStatusCancelled {
			return errGigNotOpen
		}
		if policy.HasStarted(&gig, s.now()) {
			return errGigStarted
		}
		if err := tx.Create(&role).Error; err != nil {
			return fmt.Errorf("gig service: add role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *GigService) loadOwnedGig(tx *gorm.DB, gigID, organizerID string, gig *models.Gig) error {
	if err := tx.First(gig, "id = ?", gigID).Error; err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("gig")
		}
		return fmt.Errorf("gig service: load gig: %w", err)
	}
	if gig.OrganizerID != organizerID {
		return apperrors.Forbidden("only the gig organizer may manage this gig")
	}
	return nil
}

func applyGigInput(gig *models.Gig, input GigInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return apperrors.Invalid("title is required")
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() {
		return apperrors.Invalid("start and end times are required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return apperrors.Invalid("end time must be after start time")
	}
	lat, lon, err := coordinates(input.Latitude, input.Longitude)
	if err != nil {
		return err
	}

	gig.Title = title
	gig.Description = strings.TrimSpace(input.Description)
	gig.StartsAt = input.StartsAt.UTC()
	gig.EndsAt = input.EndsAt.UTC()
	gig.Address = strings.TrimSpace(input.Address)
	gig.City = strings.TrimSpace(input.City)
	gig.State = strings.TrimSpace(input.State)
	gig.Latitude = lat
	gig.Longitude = lon
	return nil
}
