package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/lifecycle"
	"github.com/charlesng35/gigbook/internal/models"
)

// PendingInviteView is one invite awaiting the musician's response.
type PendingInviteView struct {
	InviteID      string    `json:"invite_id"`
	RoleID        string    `json:"role_id"`
	Instrument    string    `json:"instrument"`
	RateCents     int64     `json:"rate_cents"`
	Currency      string    `json:"currency"`
	GigID         string    `json:"gig_id"`
	GigTitle      string    `json:"gig_title"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	OrganizerID   string    `json:"organizer_id"`
	OrganizerName string    `json:"organizer_name"`
	Message       string    `json:"message,omitempty"`
	InvitedAt     time.Time `json:"invited_at"`
}

// ConfirmedGigView is a booked gig with the fields a calendar export reads.
// Field names are part of the read contract and must stay stable.
type ConfirmedGigView struct {
	ConfirmationID string    `json:"confirmation_id"`
	InviteID       string    `json:"invite_id"`
	RoleID         string    `json:"role_id"`
	Instrument     string    `json:"instrument"`
	GigID          string    `json:"gig_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Location       string    `json:"location"`
	City           string    `json:"city"`
	State          string    `json:"state"`
	OrganizerID    string    `json:"organizer_id"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

// BookingReadModel is the single query path for musician-facing views.
type BookingReadModel interface {
	PendingInvites(ctx context.Context, musicianID string) ([]PendingInviteView, error)
	ConfirmedGigs(ctx context.Context, musicianID string) ([]ConfirmedGigView, error)
}

// GormBookingReadModel implements BookingReadModel with joined queries.
type GormBookingReadModel struct {
	db *gorm.DB
}

var _ BookingReadModel = (*GormBookingReadModel)(nil)

// NewBookingReadModel constructs the read model.
func NewBookingReadModel(db *gorm.DB) (*GormBookingReadModel, error) {
	if db == nil {
		return nil, errors.New("booking read model: db is required")
	}
	return &GormBookingReadModel{db: db}, nil
}

// PendingInvites lists the musician's pending invites on live gigs, soonest gig first.
func (r *GormBookingReadModel) PendingInvites(ctx context.Context, musicianID string) ([]PendingInviteView, error) {
	var rows []struct {
		InviteID      string
		RoleID        string
		Instrument    string
		RateCents     int64
		Currency      string
		GigID         string
		GigTitle      string
		StartsAt      time.Time
		EndsAt        time.Time
		Address       string
		City          string
		State         string
		OrganizerID   string
		OrganizerName string
		Message       string
		InvitedAt     time.Time
	}
	err := r.db.WithContext(ensureContext(ctx)).
		Table("invites").
		Select(`invites.id AS invite_id, invites.role_id, gig_roles.instrument, gig_roles.rate_cents, gig_roles.currency,
			gigs.id AS gig_id, gigs.title AS gig_title, gigs.starts_at, gigs.ends_at, gigs.address, gigs.city, gigs.state,
			invites.organizer_id, users.display_name AS organizer_name, invites.message, invites.created_at AS invited_at`).
		Joins("JOIN gig_roles ON gig_roles.id = invites.role_id").
		Joins("JOIN gigs ON gigs.id = invites.gig_id").
		Joins("LEFT JOIN users ON users.id = invites.organizer_id").
		Where("invites.musician_id = ? AND invites.status = ? AND gigs.status <> ?",
			musicianID, lifecycle.StatusPending, models.GigStatusCancelled).
		Order("gigs.starts_at ASC, invites.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("booking read model: pending invites: %w", err)
	}

	out := make([]PendingInviteView, 0, len(rows))
	for _, row := range rows {
		out = append(out, PendingInviteView{
			InviteID:      row.InviteID,
			RoleID:        row.RoleID,
			Instrument:    row.Instrument,
			RateCents:     row.RateCents,
			Currency:      row.Currency,
			GigID:         row.GigID,
			GigTitle:      row.GigTitle,
			StartsAt:      row.StartsAt.UTC(),
			EndsAt:        row.EndsAt.UTC(),
			Address:       row.Address,
			City:          row.City,
			State:         row.State,
			OrganizerID:   row.OrganizerID,
			OrganizerName: row.OrganizerName,
			Message:       row.Message,
			InvitedAt:     row.InvitedAt.UTC(),
		})
	}
	return out, nil
}

// ConfirmedGigs lists gigs the musician is booked on, in start order.
func (r *GormBookingReadModel) ConfirmedGigs(ctx context.Context, musicianID string) ([]ConfirmedGigView, error) {
	var rows []struct {
		ConfirmationID string
		InviteID       string
		RoleID         string
		Instrument     string
		GigID          string
		Title          string
		Description    string
		StartsAt       time.Time
		EndsAt         time.Time
		Address        string
		City           string
		State          string
		OrganizerID    string
		ConfirmedAt    time.Time
	}
	err := r.db.WithContext(ensureContext(ctx)).
		Table("confirmations").
		Select(`confirmations.id AS confirmation_id, confirmations.invite_id, confirmations.role_id, gig_roles.instrument,
			gigs.id AS gig_id, gigs.title, gigs.description, gigs.starts_at, gigs.ends_at, gigs.address, gigs.city, gigs.state,
			gigs.organizer_id, confirmations.confirmed_at`).
		Joins("JOIN gig_roles ON gig_roles.id = confirmations.role_id").
		Joins("JOIN gigs ON gigs.id = confirmations.gig_id").
		Where("confirmations.musician_id = ? AND gigs.status <> ?", musicianID, models.GigStatusCancelled).
		Order("gigs.starts_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("booking read model: confirmed gigs: %w", err)
	}

	out := make([]ConfirmedGigView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ConfirmedGigView{
			ConfirmationID: row.ConfirmationID,
			InviteID:       row.InviteID,
			RoleID:         row.RoleID,
			Instrument:     row.Instrument,
			GigID:          row.GigID,
			Title:          row.Title,
			Description:    row.Description,
			StartsAt:       row.StartsAt.UTC(),
			EndsAt:         row.EndsAt.UTC(),
			Location:       joinLocation(row.Address, row.City, row.State),
			City:           row.City,
			State:          row.State,
			OrganizerID:    row.OrganizerID,
			ConfirmedAt:    row.ConfirmedAt.UTC(),
		})
	}
	return out, nil
}

func joinLocation(parts ...string) string {
	return strings.Join(normaliseStrings(parts), ", ")
}
