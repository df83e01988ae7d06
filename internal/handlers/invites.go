package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// InviteHandler exposes invite responses for musicians and withdrawals for organizers.
type InviteHandler struct {
	invites *services.InviteService
}

// NewInviteHandler constructs an invite handler.
func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

// Get returns an invite visible to either participant.
func (h *InviteHandler) Get(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	invite, err := h.invites.Get(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invite)
}

// Accept marks the caller's invite accepted.
func (h *InviteHandler) Accept(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	result, err := h.invites.Accept(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Decline marks the caller's invite declined.
func (h *InviteHandler) Decline(c *gin.Context) {
	h.respond(c, h.invites.Decline)
}

// Withdraw closes an open invite on the organizer's behalf.
func (h *InviteHandler) Withdraw(c *gin.Context) {
	h.respond(c, h.invites.Withdraw)
}

func (h *InviteHandler) respond(c *gin.Context, action func(ctx context.Context, inviteID, actorID string) (*models.Invite, error)) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	invite, err := action(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invite)
}
