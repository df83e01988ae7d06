package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/realtime"
	"github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/response"
)

// RealtimeHandler upgrades authenticated requests to the realtime hub so
// organizers and musicians see invite and booking changes as they happen.
type RealtimeHandler struct {
	hub     *realtime.Hub
	streams map[string]struct{}
}

// NewRealtimeHandler restricts subscriptions to streams. With no streams the
// hub's full set is allowed.
func NewRealtimeHandler(hub *realtime.Hub, streams ...string) *RealtimeHandler {
	allowed := realtime.AllowedStreams()
	if names := realtime.ParseStreams(streams...); len(names) > 0 {
		allowed = make(map[string]struct{}, len(names))
		for _, name := range names {
			allowed[name] = struct{}{}
		}
	}
	return &RealtimeHandler{hub: hub, streams: allowed}
}

// Stream serves GET /api/realtime?streams=notifications,bookings.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID, ok := actorID(c)
	if !ok {
		return
	}

	requested := realtime.ParseStreams(append(c.QueryArray("stream"), c.QueryArray("streams")...)...)
	if len(requested) == 0 {
		requested = realtime.DefaultStreams()
	}
	for _, stream := range requested {
		if _, ok := h.streams[stream]; !ok {
			response.Error(c, errors.Invalid("unknown stream "+stream))
			return
		}
	}

	h.hub.Serve(userID, requested, h.streams, c.Writer, c.Request)
}
