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
	"github.com/charlesng35/gigbook/pkg/metrics"
)

// DispatchInput names the musicians an organizer invites to a role.
type DispatchInput struct {
	RoleID      string
	MusicianIDs []string
	ActorID     string
	Message     string
}

// AcceptResult carries the accepted invite and, when auto-confirmation ran,
// the resulting confirmation.
type AcceptResult struct {
	Invite       *models.Invite       `json:"invite"`
	Confirmation *models.Confirmation `json:"confirmation,omitempty"`
}

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAutoConfirmSingleCandidate confirms an accepted invite immediately when
// its role needs one musician and no other invite for it has been accepted.
func WithAutoConfirmSingleCandidate(enabled bool) InviteOption {
	return func(s *InviteService) {
		s.autoConfirm = enabled
	}
}

// InviteService drives individual invites through their lifecycle.
type InviteService struct {
	db          *gorm.DB
	events      *events.Dispatcher
	autoConfirm bool
	now         func() time.Time
}

// NewInviteService constructs an InviteService.
func NewInviteService(db *gorm.DB, dispatcher *events.Dispatcher, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	svc := &InviteService{db: db, events: dispatcher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// DispatchInvites creates one pending invite per musician. The batch is all
// or nothing: any ineligible musician rejects the whole request.
func (s *InviteService) DispatchInvites(ctx context.Context, input DispatchInput) ([]models.Invite, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	musicianIDs := normaliseIDs(input.MusicianIDs)
	if len(musicianIDs) == 0 {
		return nil, apperrors.Invalid("at least one musician is required")
	}

	var (
		created  []models.Invite
		eventIDs []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.GigRole
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Gig").First(&role, "id = ?", input.RoleID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("role")
			}
			return fmt.Errorf("invite service: lock role: %w", err)
		}
		gig := role.Gig
		if gig == nil || gig.OrganizerID != input.ActorID {
			return apperrors.Forbidden("only the gig organizer may send invites")
		}
		if gig.Status != models.GigStatusPublished {
			return errGigNotOpen
		}
		if policy.HasStarted(gig, now) {
			return errGigStarted
		}

		var confirmed int64
		if err := tx.Model(&models.Confirmation{}).Where("role_id = ?", role.ID).Count(&confirmed).Error; err != nil {
			return fmt.Errorf("invite service: check confirmation: %w", err)
		}
		if confirmed > 0 {
			return errRoleAlreadyFilled
		}

		var profiles []models.MusicianProfile
		if err := tx.Where("user_id IN ?", musicianIDs).Find(&profiles).Error; err != nil {
			return fmt.Errorf("invite service: load profiles: %w", err)
		}
		byID := make(map[string]*models.MusicianProfile, len(profiles))
		for i := range profiles {
			byID[profiles[i].UserID] = &profiles[i]
		}

		suspended, err := activeSuspensions(tx, musicianIDs, now)
		if err != nil {
			return fmt.Errorf("invite service: %w", err)
		}

		var open []string
		if err := tx.Model(&models.Invite{}).
			Where("role_id = ? AND musician_id IN ? AND status IN ?", role.ID, musicianIDs, lifecycle.OpenStatuses()).
			Pluck("musician_id", &open).Error; err != nil {
			return fmt.Errorf("invite service: check open invites: %w", err)
		}
		if len(open) > 0 {
			return apperrors.Conflict("musician already has an open invite for this role").
				WithDetails(map[string]any{"musician_ids": open})
		}

		for _, id := range musicianIDs {
			profile, ok := byID[id]
			if !ok {
				return apperrors.NotFound("musician profile").WithDetails(map[string]any{"musician_id": id})
			}
			if !matching.Plays(profile.Instruments, role.Instrument) {
				return apperrors.Invalid(fmt.Sprintf("musician %s does not play %s", id, role.Instrument))
			}
			if suspension, blocked := suspended[id]; blocked {
				return suspensionViolation(suspension, now)
			}
		}

		batch := events.NewBatch(tx, now)
		message := strings.TrimSpace(input.Message)
		for _, id := range musicianIDs {
			invite := models.Invite{
				RoleID:      role.ID,
				GigID:       gig.ID,
				MusicianID:  id,
				OrganizerID: gig.OrganizerID,
				Status:      lifecycle.StatusPending,
				Message:     message,
			}
			if err := tx.Create(&invite).Error; err != nil {
				if isUniqueConstraintError(err) {
					return apperrors.Conflict("musician already has an open invite for this role").WithInternal(err)
				}
				return fmt.Errorf("invite service: create invite: %w", err)
			}
			if err := batch.Add(events.TypeInviteCreated, invite.ID, invitePayload(&invite, gig, &role, invite.Status, "")); err != nil {
				return err
			}
			created = append(created, invite)
		}
		eventIDs = batch.IDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InviteTransitions.WithLabelValues(lifecycle.StatusPending).Add(float64(len(created)))
	s.events.Deliver(ctx, eventIDs...)
	return created, nil
}

// Accept records the musician's acceptance. Accepting only makes the invite
// eligible for confirmation unless auto-confirmation applies.
func (s *InviteService) Accept(ctx context.Context, inviteID, musicianID string) (*AcceptResult, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := &AcceptResult{}
	var eventIDs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invite, gig, role, err := s.loadForMusician(tx, inviteID, musicianID)
		if err != nil {
			return err
		}
		if invite.Status != lifecycle.StatusPending {
			return errInviteAlreadyResponded
		}
		if gig.Status == models.GigStatusCancelled {
			return errGigNotOpen
		}
		if policy.HasStarted(gig, now) {
			return errGigStarted
		}
		// auto-confirm closes siblings, so take the role lock before any
		// invite row, in the same order as Confirm
		if s.autoConfirm {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&models.GigRole{}, "id = ?", role.ID).Error; err != nil {
				return fmt.Errorf("invite service: lock role: %w", err)
			}
		}

		if err := lifecycle.Apply(tx, lifecycle.Change{
			InviteID: invite.ID, From: lifecycle.StatusPending, To: lifecycle.StatusAccepted, At: now,
		}); err != nil {
			return transitionError(err)
		}
		invite.Status = lifecycle.StatusAccepted
		invite.RespondedAt = &now

		batch := events.NewBatch(tx, now)
		if err := batch.Add(events.TypeInviteAccepted, invite.ID, invitePayload(invite, gig, role, invite.Status, "")); err != nil {
			return err
		}

		if s.autoConfirm {
			ok, err := singleCandidate(tx, role)
			if err != nil {
				return err
			}
			if ok {
				confirmation, err := confirmInTx(tx, batch, role.ID, invite.ID, gig.OrganizerID, now)
				if err != nil {
					return err
				}
				invite.Status = lifecycle.StatusConfirmed
				result.Confirmation = confirmation
			}
		}

		result.Invite = invite
		eventIDs = batch.IDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InviteTransitions.WithLabelValues(lifecycle.StatusAccepted).Inc()
	if result.Confirmation != nil {
		metrics.Confirmations.WithLabelValues("confirmed").Inc()
	}
	s.events.Deliver(ctx, eventIDs...)
	return result, nil
}

// Decline closes a pending invite on the musician's behalf.
func (s *InviteService) Decline(ctx context.Context, inviteID, musicianID string) (*models.Invite, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var (
		invite   *models.Invite
		eventIDs []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			gig  *models.Gig
			role *models.GigRole
			err  error
		)
		invite, gig, role, err = s.loadForMusician(tx, inviteID, musicianID)
		if err != nil {
			return err
		}
		if invite.Status != lifecycle.StatusPending {
			return errInviteAlreadyResponded
		}
		if err := lifecycle.Apply(tx, lifecycle.Change{
			InviteID: invite.ID, From: lifecycle.StatusPending, To: lifecycle.StatusDeclined,
			At: now, Reason: lifecycle.ReasonDeclined,
		}); err != nil {
			return transitionError(err)
		}
		invite.Status = lifecycle.StatusDeclined
		invite.RespondedAt = &now
		invite.ClosedAt = &now
		invite.CloseReason = lifecycle.ReasonDeclined

		id, err := events.Record(tx, events.TypeInviteDeclined, invite.ID,
			invitePayload(invite, gig, role, invite.Status, lifecycle.ReasonDeclined), now)
		if err != nil {
			return err
		}
		eventIDs = []string{id}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InviteTransitions.WithLabelValues(lifecycle.StatusDeclined).Inc()
	s.events.Deliver(ctx, eventIDs...)
	return invite, nil
}

// Withdraw cancels a pending or accepted invite on the organizer's behalf.
// Confirmed invites are unwound through the cancellation path instead.
func (s *InviteService) Withdraw(ctx context.Context, inviteID, organizerID string) (*models.Invite, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var (
		invite   models.Invite
		eventIDs []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Role").Preload("Gig").First(&invite, "id = ?", inviteID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("invite")
			}
			return fmt.Errorf("invite service: load invite: %w", err)
		}
		if invite.OrganizerID != organizerID {
			return apperrors.Forbidden("only the gig organizer may withdraw an invite")
		}
		if invite.Status == lifecycle.StatusConfirmed {
			return apperrors.Conflict("confirmed invites must be cancelled through the confirmation")
		}
		if !lifecycle.IsOpen(invite.Status) {
			return errInviteAlreadyResponded
		}
		if err := lifecycle.Apply(tx, lifecycle.Change{
			InviteID: invite.ID, From: invite.Status, To: lifecycle.StatusCancelled,
			At: now, Reason: lifecycle.ReasonWithdrawn,
		}); err != nil {
			return transitionError(err)
		}
		if invite.Status == lifecycle.StatusPending {
			invite.RespondedAt = &now
		}
		invite.Status = lifecycle.StatusCancelled
		invite.ClosedAt = &now
		invite.CloseReason = lifecycle.ReasonWithdrawn

		id, err := events.Record(tx, events.TypeInviteWithdrawn, invite.ID,
			invitePayload(&invite, invite.Gig, invite.Role, invite.Status, lifecycle.ReasonWithdrawn), now)
		if err != nil {
			return err
		}
		eventIDs = []string{id}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InviteTransitions.WithLabelValues(lifecycle.StatusCancelled).Inc()
	s.events.Deliver(ctx, eventIDs...)
	return &invite, nil
}

// Get returns an invite visible to one of its two participants.
func (s *InviteService) Get(ctx context.Context, inviteID, actorID string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.WithContext(ensureContext(ctx)).Preload("Role").Preload("Gig").First(&invite, "id = ?", inviteID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("invite")
		}
		return nil, fmt.Errorf("invite service: get invite: %w", err)
	}
	if actorID != invite.MusicianID && actorID != invite.OrganizerID {
		return nil, apperrors.Forbidden("not a participant of this invite")
	}
	return &invite, nil
}

// ListForRole returns every invite for a role, oldest first.
func (s *InviteService) ListForRole(ctx context.Context, roleID, organizerID string) ([]models.Invite, error) {
	db := s.db.WithContext(ensureContext(ctx))

	var role models.GigRole
	if err := db.Preload("Gig").First(&role, "id = ?", roleID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("role")
		}
		return nil, fmt.Errorf("invite service: load role: %w", err)
	}
	if role.Gig == nil || role.Gig.OrganizerID != organizerID {
		return nil, apperrors.Forbidden("only the gig organizer may list invites")
	}

	var invites []models.Invite
	if err := db.Where("role_id = ?", roleID).Order("created_at ASC").Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("invite service: list invites: %w", err)
	}
	return invites, nil
}

func (s *InviteService) loadForMusician(tx *gorm.DB, inviteID, musicianID string) (*models.Invite, *models.Gig, *models.GigRole, error) {
	var invite models.Invite
	if err := tx.Preload("Role").Preload("Gig").First(&invite, "id = ?", inviteID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil, nil, apperrors.NotFound("invite")
		}
		return nil, nil, nil, fmt.Errorf("invite service: load invite: %w", err)
	}
	if invite.MusicianID != musicianID {
		return nil, nil, nil, apperrors.Forbidden("only the invited musician may respond")
	}
	if invite.Gig == nil || invite.Role == nil {
		return nil, nil, nil, fmt.Errorf("invite service: invite %s has no gig or role", invite.ID)
	}
	return &invite, invite.Gig, invite.Role, nil
}

// singleCandidate reports whether the role needs one musician, is unfilled and
// has exactly one accepted invite.
func singleCandidate(tx *gorm.DB, role *models.GigRole) (bool, error) {
	if role.Quantity != 1 {
		return false, nil
	}
	var confirmed int64
	if err := tx.Model(&models.Confirmation{}).Where("role_id = ?", role.ID).Count(&confirmed).Error; err != nil {
		return false, fmt.Errorf("invite service: check confirmation: %w", err)
	}
	if confirmed > 0 {
		return false, nil
	}
	var accepted int64
	if err := tx.Model(&models.Invite{}).
		Where("role_id = ? AND status = ?", role.ID, lifecycle.StatusAccepted).
		Count(&accepted).Error; err != nil {
		return false, fmt.Errorf("invite service: count accepted: %w", err)
	}
	return accepted == 1, nil
}
