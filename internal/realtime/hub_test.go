package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams []string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, AllowedStreams(), w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubDeliversToSubscribedUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "musician-1", DefaultStreams())

	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamBookings, "musician-1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToUser(StreamNotifications, "someone-else", Message{Event: "ignored"})
	hub.BroadcastToUsers(StreamBookings, []string{"musician-1", "musician-1"}, Message{Event: "invite.created", Data: map[string]string{"invite_id": "abc"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, StreamBookings, msg.Stream)
	require.Equal(t, "invite.created", msg.Event)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubControlMessages(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "organizer-1", nil)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "subscribe", Streams: []string{"Bookings", "admin.secret"}}))
	ack := readMessage(t, conn)
	require.Equal(t, StreamControl, ack.Stream)
	require.Equal(t, "subscribed", ack.Event)
	require.Equal(t, map[string]any{"active": []any{StreamBookings}, "rejected": []any{"admin.secret"}}, ack.Data)
	require.Equal(t, 1, hub.Subscribers(StreamBookings, "organizer-1"))
	require.Zero(t, hub.Subscribers("admin.secret", "organizer-1"))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "ping"}))
	require.Equal(t, "pong", readMessage(t, conn).Event)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "unsubscribe", Streams: []string{StreamBookings}}))
	ack = readMessage(t, conn)
	require.Equal(t, "unsubscribed", ack.Event)
	require.Equal(t, map[string]any{"active": []any{}}, ack.Data)
	require.Zero(t, hub.Subscribers(StreamBookings, "organizer-1"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.Equal(t, "error", readMessage(t, conn).Event)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "shout"}))
	bad := readMessage(t, conn)
	require.Equal(t, "error", bad.Event)
	require.Equal(t, map[string]any{"message": "unknown action shout"}, bad.Data)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "musician-2", []string{StreamNotifications})

	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamNotifications, "musician-2") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.Subscribers(StreamNotifications, "musician-2") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(WithAllowedOrigins([]string{"https://app.gigbook.example"}))

	req := httptest.NewRequest(http.MethodGet, "http://api.gigbook.example/api/realtime", nil)
	require.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://app.gigbook.example")
	require.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:5173")
	require.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	require.False(t, hub.checkOrigin(req))

	open := NewHub(WithAllowedOrigins([]string{"*"}))
	require.True(t, open.checkOrigin(req))
}
