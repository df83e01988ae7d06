package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// ConfirmationHandler exposes cancellation of a booked confirmation.
type ConfirmationHandler struct {
	confirmations *services.ConfirmationService
}

// NewConfirmationHandler constructs a confirmation handler.
func NewConfirmationHandler(confirmations *services.ConfirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{confirmations: confirmations}
}

// Cancel releases the booking. Either participant may cancel; late or
// frequent musician cancellations may carry a suspension in the result.
func (h *ConfirmationHandler) Cancel(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	result, err := h.confirmations.Cancel(requestContext(c), pathID(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
