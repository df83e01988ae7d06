package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// MeHandler returns the authenticated account.
type MeHandler struct {
	users *services.UserService
}

// NewMeHandler constructs a me handler.
func NewMeHandler(users *services.UserService) *MeHandler {
	return &MeHandler{users: users}
}

// Get returns the caller's account.
func (h *MeHandler) Get(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
