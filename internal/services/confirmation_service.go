package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/policy"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/metrics"
)

// CancellationResult is returned when a confirmation is unwound.
type CancellationResult struct {
	Invite       *models.Invite             `json:"invite"`
	Cancellation *models.CancellationRecord `json:"cancellation"`
	Suspension   *models.Suspension         `json:"suspension,omitempty"`
}

// ConfirmationOption customises ConfirmationService behaviour.
type ConfirmationOption func(*ConfirmationService)

// WithConfirmationClock injects a custom clock primarily for testing.
func WithConfirmationClock(clock func() time.Time) ConfirmationOption {
	return func(s *ConfirmationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ConfirmationService promotes one accepted invite per role to the booking
// and unwinds bookings through the cancellation policy.
type ConfirmationService struct {
	db     *gorm.DB
	policy *policy.CancellationPolicy
	events *events.Dispatcher
	now    func() time.Time
}

// NewConfirmationService constructs a ConfirmationService. A nil policy uses
// the default cancellation parameters.
func NewConfirmationService(db *gorm.DB, cancellation *policy.CancellationPolicy, dispatcher *events.Dispatcher, opts ...ConfirmationOption) (*ConfirmationService, error) {
	if db == nil {
		return nil, errors.New("confirmation service: db is required")
	}
	if cancellation == nil {
		cancellation = policy.NewCancellationPolicy(policy.DefaultCancellationConfig())
	}
	svc := &ConfirmationService{db: db, policy: cancellation, events: dispatcher, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Confirm books the musician behind inviteID for roleID. Only the gig's
// organizer may confirm; a role with an existing confirmation is a conflict.
func (s *ConfirmationService) Confirm(ctx context.Context, roleID, inviteID, actorID string) (*models.Confirmation, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var (
		confirmation *models.Confirmation
		eventIDs     []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch := events.NewBatch(tx, now)
		var err error
		confirmation, err = confirmInTx(tx, batch, roleID, inviteID, actorID, now)
		if err != nil {
			return err
		}
		eventIDs = batch.IDs()
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			metrics.Confirmations.WithLabelValues("conflict").Inc()
		} else {
			metrics.Confirmations.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.Confirmations.WithLabelValues("confirmed").Inc()
	s.events.Deliver(ctx, eventIDs...)
	return confirmation, nil
}

// Get returns a confirmation with its invite.
func (s *ConfirmationService) Get(ctx context.Context, confirmationID string) (*models.Confirmation, error) {
	var confirmation models.Confirmation
	err := s.db.WithContext(ensureContext(ctx)).Preload("Invite").First(&confirmation, "id = ?", confirmationID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("confirmation")
		}
		return nil, fmt.Errorf("confirmation service: get: %w", err)
	}
	return &confirmation, nil
}

// ForRole returns the role's confirmation, or nil when the role is open.
// Only the gig organizer may look it up.
func (s *ConfirmationService) ForRole(ctx context.Context, roleID, organizerID string) (*models.Confirmation, error) {
	db := s.db.WithContext(ensureContext(ctx))

	var role models.GigRole
	if err := db.Preload("Gig").First(&role, "id = ?", roleID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("role")
		}
		return nil, fmt.Errorf("confirmation service: load role: %w", err)
	}
	if role.Gig == nil || role.Gig.OrganizerID != organizerID {
		return nil, apperrors.Forbidden("only the gig organizer may view the role's booking")
	}

	var rows []models.Confirmation
	if err := db.Where("role_id = ?", roleID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("confirmation service: load role confirmation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Cancel unwinds a confirmation. The booked musician or the gig organizer may
// cancel; only a musician-initiated cancellation is evaluated by the policy.
// The role reopens without any invite being recreated.
func (s *ConfirmationService) Cancel(ctx context.Context, confirmationID, actorID string) (*CancellationResult, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var (
		result   *CancellationResult
		eventIDs []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var confirmation models.Confirmation
		if err := tx.First(&confirmation, "id = ?", confirmationID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("confirmation")
			}
			return fmt.Errorf("confirmation service: load confirmation: %w", err)
		}
		var gig models.Gig
		if err := tx.First(&gig, "id = ?", confirmation.GigID).Error; err != nil {
			return fmt.Errorf("confirmation service: load gig: %w", err)
		}

		var initiator string
		switch actorID {
		case confirmation.MusicianID:
			initiator = models.InitiatorMusician
		case gig.OrganizerID:
			initiator = models.InitiatorOrganizer
		default:
			return apperrors.Forbidden("only the booked musician or the organizer may cancel")
		}

		batch := events.NewBatch(tx, now)
		out, err := cancelConfirmationInTx(tx, batch, s.policy, cancelInput{
			confirmation: &confirmation,
			gig:          &gig,
			actorID:      actorID,
			initiator:    initiator,
			reason:       lifecycle.ReasonConfirmationCancelled,
			now:          now,
		})
		if err != nil {
			return err
		}
		result = out
		eventIDs = batch.IDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Deliver(ctx, eventIDs...)
	return result, nil
}

// confirmInTx runs the confirmation under the role's row lock. The unique
// index on confirmations.role_id backs the lock on drivers that ignore it.
func confirmInTx(tx *gorm.DB, batch *events.Batch, roleID, inviteID, actorID string, now time.Time) (*models.Confirmation, error) {
	var role models.GigRole
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Gig").First(&role, "id = ?", roleID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("role")
		}
		return nil, fmt.Errorf("confirmation service: lock role: %w", err)
	}
	gig := role.Gig
	if gig == nil || gig.OrganizerID != actorID {
		return nil, apperrors.Forbidden("only the gig organizer may confirm")
	}
	if gig.Status == models.GigStatusCancelled {
		return nil, errGigNotOpen
	}

	var existing int64
	if err := tx.Model(&models.Confirmation{}).Where("role_id = ?", role.ID).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("confirmation service: check existing: %w", err)
	}
	if existing > 0 {
		return nil, errRoleAlreadyFilled
	}

	var invite models.Invite
	if err := tx.First(&invite, "id = ?", inviteID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("invite")
		}
		return nil, fmt.Errorf("confirmation service: load invite: %w", err)
	}
	if invite.RoleID != role.ID {
		return nil, apperrors.Invalid("invite does not belong to this role")
	}
	if invite.Status != lifecycle.StatusAccepted {
		return nil, apperrors.Conflict("only accepted invites can be confirmed")
	}

	confirmation := models.Confirmation{
		RoleID:      role.ID,
		InviteID:    invite.ID,
		GigID:       invite.GigID,
		MusicianID:  invite.MusicianID,
		ConfirmedBy: actorID,
		ConfirmedAt: now,
	}
	if err := tx.Create(&confirmation).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, errRoleAlreadyFilled.WithInternal(err)
		}
		return nil, fmt.Errorf("confirmation service: create confirmation: %w", err)
	}

	if err := lifecycle.Apply(tx, lifecycle.Change{
		InviteID: invite.ID, From: lifecycle.StatusAccepted, To: lifecycle.StatusConfirmed, At: now,
	}); err != nil {
		return nil, transitionError(err)
	}
	invite.Status = lifecycle.StatusConfirmed

	var siblings []models.Invite
	if err := tx.Where("role_id = ? AND id <> ? AND status IN ?", role.ID, invite.ID, lifecycle.OpenStatuses()).
		Find(&siblings).Error; err != nil {
		return nil, fmt.Errorf("confirmation service: load siblings: %w", err)
	}
	closed, err := lifecycle.CloseOpenSiblings(tx, role.ID, invite.ID, now, lifecycle.ReasonRoleFilled)
	if err != nil {
		return nil, fmt.Errorf("confirmation service: %w", err)
	}
	closedSet := make(map[string]struct{}, len(closed))
	for _, id := range closed {
		closedSet[id] = struct{}{}
	}
	for i := range siblings {
		if _, ok := closedSet[siblings[i].ID]; !ok {
			continue
		}
		payload := invitePayload(&siblings[i], gig, &role, lifecycle.StatusCancelled, lifecycle.ReasonRoleFilled)
		if err := batch.Add(events.TypeInviteWithdrawn, siblings[i].ID, payload); err != nil {
			return nil, err
		}
		metrics.InviteTransitions.WithLabelValues(lifecycle.StatusCancelled).Inc()
	}

	if err := batch.Add(events.TypeMusicianConfirmed, confirmation.ID, events.ConfirmationPayload{
		ConfirmationID: confirmation.ID,
		InviteID:       invite.ID,
		RoleID:         role.ID,
		GigID:          gig.ID,
		GigTitle:       gig.Title,
		GigStartsAt:    gig.StartsAt,
		MusicianID:     invite.MusicianID,
		OrganizerID:    gig.OrganizerID,
		ActorID:        actorID,
	}); err != nil {
		return nil, err
	}
	metrics.InviteTransitions.WithLabelValues(lifecycle.StatusConfirmed).Inc()

	confirmation.Invite = &invite
	return &confirmation, nil
}

type cancelInput struct {
	confirmation *models.Confirmation
	gig          *models.Gig
	actorID      string
	initiator    string
	reason       string
	now          time.Time
}

// cancelConfirmationInTx voids the confirmation and cancels its invite, then
// records the cancellation. Musician-initiated cancellations are evaluated by
// the policy and may issue a suspension; a nil policy skips evaluation.
func cancelConfirmationInTx(tx *gorm.DB, batch *events.Batch, cancellation *policy.CancellationPolicy, in cancelInput) (*CancellationResult, error) {
	res := tx.Where("id = ?", in.confirmation.ID).Delete(&models.Confirmation{})
	if res.Error != nil {
		return nil, fmt.Errorf("confirmation service: delete confirmation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("confirmation already cancelled")
	}

	if err := lifecycle.Apply(tx, lifecycle.Change{
		InviteID: in.confirmation.InviteID, From: lifecycle.StatusConfirmed, To: lifecycle.StatusCancelled,
		At: in.now, Reason: in.reason,
	}); err != nil {
		return nil, transitionError(err)
	}
	var invite models.Invite
	if err := tx.First(&invite, "id = ?", in.confirmation.InviteID).Error; err != nil {
		return nil, fmt.Errorf("confirmation service: reload invite: %w", err)
	}

	record := models.CancellationRecord{
		MusicianID:  in.confirmation.MusicianID,
		InviteID:    in.confirmation.InviteID,
		RoleID:      in.confirmation.RoleID,
		GigStartsAt: in.gig.StartsAt,
		CancelledAt: in.now,
		CancelledBy: in.actorID,
		Initiator:   in.initiator,
	}

	var decision policy.Decision
	if in.initiator == models.InitiatorMusician && cancellation != nil {
		var prior []time.Time
		if err := tx.Model(&models.CancellationRecord{}).
			Where("musician_id = ? AND initiator = ? AND cancelled_at > ?",
				record.MusicianID, models.InitiatorMusician, cancellation.FrequencySince(in.now)).
			Pluck("cancelled_at", &prior).Error; err != nil {
			return nil, fmt.Errorf("confirmation service: load prior cancellations: %w", err)
		}
		decision = cancellation.Evaluate(in.gig.StartsAt, in.now, prior)
		record.Late = decision.Late
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("confirmation service: record cancellation: %w", err)
	}

	result := &CancellationResult{Invite: &invite, Cancellation: &record}
	if err := batch.Add(events.TypeConfirmationCancelled, in.confirmation.ID, events.ConfirmationPayload{
		ConfirmationID: in.confirmation.ID,
		InviteID:       invite.ID,
		RoleID:         invite.RoleID,
		GigID:          in.gig.ID,
		GigTitle:       in.gig.Title,
		GigStartsAt:    in.gig.StartsAt,
		MusicianID:     invite.MusicianID,
		OrganizerID:    in.gig.OrganizerID,
		ActorID:        in.actorID,
		Initiator:      in.initiator,
		Late:           record.Late,
	}); err != nil {
		return nil, err
	}

	if window := decision.Suspension; window != nil {
		suspension := models.Suspension{
			MusicianID:     record.MusicianID,
			StartsAt:       window.StartsAt,
			EndsAt:         window.EndsAt,
			Reason:         window.Reason,
			CancellationID: record.ID,
		}
		if err := tx.Create(&suspension).Error; err != nil {
			return nil, fmt.Errorf("confirmation service: create suspension: %w", err)
		}
		if err := batch.Add(events.TypeMusicianSuspended, suspension.ID, events.SuspensionPayload{
			SuspensionID: suspension.ID,
			MusicianID:   suspension.MusicianID,
			StartsAt:     suspension.StartsAt,
			EndsAt:       suspension.EndsAt,
			Reason:       suspension.Reason,
		}); err != nil {
			return nil, err
		}
		metrics.Suspensions.WithLabelValues(suspension.Reason).Inc()
		result.Suspension = &suspension
	}

	metrics.InviteTransitions.WithLabelValues(lifecycle.StatusCancelled).Inc()
	metrics.Cancellations.WithLabelValues(in.initiator, strconv.FormatBool(record.Late)).Inc()
	return result, nil
}

func invitePayload(invite *models.Invite, gig *models.Gig, role *models.GigRole, status, reason string) events.InvitePayload {
	payload := events.InvitePayload{
		InviteID:    invite.ID,
		RoleID:      invite.RoleID,
		GigID:       invite.GigID,
		MusicianID:  invite.MusicianID,
		OrganizerID: invite.OrganizerID,
		Status:      status,
		Reason:      reason,
	}
	if gig != nil {
		payload.GigTitle = gig.Title
	}
	if role != nil {
		payload.Instrument = role.Instrument
	} else if invite.Role != nil {
		payload.Instrument = invite.Role.Instrument
	}
	return payload
}
