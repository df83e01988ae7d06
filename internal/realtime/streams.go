package realtime

import "strings"

// Named realtime streams.
const (
	// StreamNotifications carries in-app notifications for the authenticated user.
	StreamNotifications = "notifications"
	// StreamBookings carries invite and confirmation state changes so
	// organizer and musician views can refresh without polling.
	StreamBookings = "bookings"
)

// DefaultStreams are subscribed when a client does not name any.
func DefaultStreams() []string {
	return []string{StreamNotifications, StreamBookings}
}

// AllowedStreams is the set a client may subscribe to.
func AllowedStreams() map[string]struct{} {
	return map[string]struct{}{
		StreamNotifications: {},
		StreamBookings:      {},
	}
}

// ParseStreams normalises and deduplicates stream names from query values.
// Each value may hold a comma separated list.
func ParseStreams(values ...string) []string {
	var streams []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if stream := normalizeStream(part); stream != "" {
				streams = append(streams, stream)
			}
		}
	}
	return uniqueStreams(streams)
}
