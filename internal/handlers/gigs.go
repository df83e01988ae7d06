package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// GigHandler exposes organizer endpoints for gigs and their roles.
type GigHandler struct {
	gigs *services.GigService
}

// NewGigHandler constructs a gig handler.
func NewGigHandler(gigs *services.GigService) *GigHandler {
	return &GigHandler{gigs: gigs}
}

type gigPayload struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"max=5000"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	Address     string    `json:"address" validate:"max=512"`
	City        string    `json:"city" validate:"max=128"`
	State       string    `json:"state" validate:"max=64"`
	Latitude    *float64  `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64  `json:"longitude" validate:"omitempty,longitude"`
}

func (p gigPayload) input() services.GigInput {
	return services.GigInput{
		Title:       p.Title,
		Description: p.Description,
		StartsAt:    p.StartsAt,
		EndsAt:      p.EndsAt,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
	}
}

// updateGigPayload carries a partial edit; omitted fields keep their value.
type updateGigPayload struct {
	Title       *string    `json:"title" validate:"omitempty,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Address     *string    `json:"address" validate:"omitempty,max=512"`
	City        *string    `json:"city" validate:"omitempty,max=128"`
	State       *string    `json:"state" validate:"omitempty,max=64"`
	Latitude    *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64   `json:"longitude" validate:"omitempty,longitude"`
}

type rolePayload struct {
	Instrument string   `json:"instrument" validate:"required,instrument"`
	Quantity   int      `json:"quantity" validate:"gte=0,lte=100"`
	Genres     []string `json:"genres" validate:"max=20,dive,max=64"`
	Skills     []string `json:"skills" validate:"max=20,dive,max=64"`
	Equipment  []string `json:"equipment" validate:"max=20,dive,max=64"`
	RateCents  int64    `json:"rate_cents" validate:"gte=0"`
	Currency   string   `json:"currency" validate:"omitempty,len=3"`
}

// Create posts a new draft gig.
func (h *GigHandler) Create(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload gigPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	gig, err := h.gigs.Create(requestContext(c), userID, payload.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gig)
}

// List returns the caller's gigs.
func (h *GigHandler) List(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	gigs, err := h.gigs.ListForOrganizer(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gigs)
}

// Get returns a gig with its roles.
func (h *GigHandler) Get(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}

	gig, err := h.gigs.Get(requestContext(c), pathID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gig)
}

// Update applies a partial edit to a gig.
func (h *GigHandler) Update(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload updateGigPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	ctx := requestContext(c)
	current, err := h.gigs.Get(ctx, pathID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	input := services.GigInput{
		Title:       stringOr(payload.Title, current.Title),
		Description: stringOr(payload.Description, current.Description),
		StartsAt:    timeOr(payload.StartsAt, current.StartsAt),
		EndsAt:      timeOr(payload.EndsAt, current.EndsAt),
		Address:     stringOr(payload.Address, current.Address),
		City:        stringOr(payload.City, current.City),
		State:       stringOr(payload.State, current.State),
		Latitude:    current.Latitude,
		Longitude:   current.Longitude,
	}
	if payload.Latitude != nil || payload.Longitude != nil {
		input.Latitude, input.Longitude = payload.Latitude, payload.Longitude
	}

	gig, err := h.gigs.Update(ctx, current.ID, userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gig)
}

// Publish opens a draft gig for invitations.
func (h *GigHandler) Publish(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	gig, err := h.gigs.Publish(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gig)
}

// Cancel cancels a gig, closing every invite and confirmation under it.
func (h *GigHandler) Cancel(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	gig, err := h.gigs.Cancel(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gig)
}

// AddRole appends a staffing need to a gig.
func (h *GigHandler) AddRole(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload rolePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	role, err := h.gigs.AddRole(requestContext(c), pathID(c), userID, services.RoleInput{
		Instrument: payload.Instrument,
		Quantity:   payload.Quantity,
		Genres:     payload.Genres,
		Skills:     payload.Skills,
		Equipment:  payload.Equipment,
		RateCents:  payload.RateCents,
		Currency:   payload.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func timeOr(value *time.Time, fallback time.Time) time.Time {
	if value == nil {
		return fallback
	}
	return *value
}
