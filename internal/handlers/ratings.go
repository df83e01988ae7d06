package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/services"
	"github.com/charlesng35/gigbook/pkg/response"
)

// RatingHandler exposes post-gig ratings.
type RatingHandler struct {
	ratings *services.RatingService
}

// NewRatingHandler constructs a rating handler.
func NewRatingHandler(ratings *services.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type ratingPayload struct {
	Score   int      `json:"score" validate:"required,gte=1,lte=5"`
	Comment string   `json:"comment" validate:"max=2000"`
	Tags    []string `json:"tags" validate:"max=10,dive,max=32"`
}

// Submit records the caller's rating of the other party on a completed booking.
func (h *RatingHandler) Submit(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var payload ratingPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	rating, err := h.ratings.Submit(requestContext(c), services.SubmitRatingInput{
		InviteID: pathID(c),
		RaterID:  userID,
		Score:    payload.Score,
		Comment:  payload.Comment,
		Tags:     payload.Tags,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, rating)
}

// List returns ratings received by a user, newest first.
func (h *RatingHandler) List(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}

	limit, offset := pageParams(c)
	items, err := h.ratings.ListFor(requestContext(c), pathID(c), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, items, response.PageMeta(limit, offset, len(items)))
}

// Summary returns the aggregate of ratings a user received.
func (h *RatingHandler) Summary(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}

	summary, err := h.ratings.Summary(requestContext(c), pathID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}
