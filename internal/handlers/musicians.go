package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// MusicianHandler serves the musician's profile and booking views.
type MusicianHandler struct {
	musicians *services.MusicianService
	views     services.BookingReadModel
}

// NewMusicianHandler constructs a musician handler.
func NewMusicianHandler(musicians *services.MusicianService, views services.BookingReadModel) *MusicianHandler {
	return &MusicianHandler{musicians: musicians, views: views}
}

type profilePayload struct {
	Instruments    []string `json:"instruments" validate:"required,min=1,max=20,dive,instrument"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
	SearchRadiusKm float64  `json:"search_radius_km" validate:"gte=0,lte=20000"`
	Bio            string   `json:"bio" validate:"max=2000"`
}

// UpsertProfile creates or replaces the caller's profile.
func (h *MusicianHandler) UpsertProfile(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload profilePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	profile, err := h.musicians.UpsertProfile(requestContext(c), userID, services.ProfileInput{
		Instruments:    payload.Instruments,
		Latitude:       payload.Latitude,
		Longitude:      payload.Longitude,
		SearchRadiusKm: payload.SearchRadiusKm,
		Bio:            payload.Bio,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// GetProfile returns a musician's public profile.
func (h *MusicianHandler) GetProfile(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}

	profile, err := h.musicians.GetProfile(requestContext(c), pathID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// Suspension reports the caller's active suspension, if any.
func (h *MusicianHandler) Suspension(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	status, err := h.musicians.SuspensionStatus(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// PendingInvites lists the caller's invites awaiting a response.
func (h *MusicianHandler) PendingInvites(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	items, err := h.views.PendingInvites(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// ConfirmedGigs lists the caller's confirmed bookings.
func (h *MusicianHandler) ConfirmedGigs(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	items, err := h.views.ConfirmedGigs(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}
