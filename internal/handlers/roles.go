package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// RoleHandler exposes the organizer's staffing workflow for a gig role.
type RoleHandler struct {
	candidates    *services.CandidateService
	invites       *services.InviteService
	confirmations *services.ConfirmationService
}

// NewRoleHandler constructs a role handler.
func NewRoleHandler(candidates *services.CandidateService, invites *services.InviteService, confirmations *services.ConfirmationService) *RoleHandler {
	return &RoleHandler{candidates: candidates, invites: invites, confirmations: confirmations}
}

type dispatchPayload struct {
	MusicianIDs []string `json:"musician_ids" validate:"required,min=1,max=50,dive,required"`
	Message     string   `json:"message" validate:"max=2000"`
}

type confirmPayload struct {
	InviteID string `json:"invite_id" validate:"required"`
}

// Candidates lists musicians eligible for the role, nearest first.
func (h *RoleHandler) Candidates(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	items, err := h.candidates.ListCandidates(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// DispatchInvites sends invites to the selected musicians. The batch is all or nothing.
func (h *RoleHandler) DispatchInvites(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload dispatchPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	invites, err := h.invites.DispatchInvites(requestContext(c), services.DispatchInput{
		RoleID:      pathID(c),
		MusicianIDs: payload.MusicianIDs,
		ActorID:     userID,
		Message:     payload.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, invites)
}

// ListInvites returns every invite sent for the role.
func (h *RoleHandler) ListInvites(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	invites, err := h.invites.ListForRole(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invites)
}

// Confirm books an accepted invite as the role's musician.
func (h *RoleHandler) Confirm(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload confirmPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	confirmation, err := h.confirmations.Confirm(requestContext(c), pathID(c), payload.InviteID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, confirmation)
}

// Confirmation returns the musician booked for the role, or null while it is open.
func (h *RoleHandler) Confirmation(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	confirmation, err := h.confirmations.ForRole(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, confirmation)
}
