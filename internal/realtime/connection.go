package realtime

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamControl carries replies to client control frames.
const StreamControl = "control"

// Control actions a client may send over the socket.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// SubscriptionAck answers subscribe and unsubscribe frames with the streams
// now active on the connection and any the client may not join.
type SubscriptionAck struct {
	Active   []string `json:"active"`
	Rejected []string `json:"rejected,omitempty"`
}

type connection struct {
	hub     *Hub
	socket  *websocket.Conn
	userID  string
	allowed map[string]struct{}

	// streams is guarded by hub.mu.
	streams map[string]struct{}

	sendMu sync.Mutex
	send   chan Message
	done   bool
}

func newConnection(hub *Hub, socket *websocket.Conn, userID string, allowed map[string]struct{}) *connection {
	return &connection{
		hub:     hub,
		socket:  socket,
		userID:  userID,
		allowed: allowed,
		streams: make(map[string]struct{}),
		send:    make(chan Message, defaultBufferSize),
	}
}

// enqueue never blocks a broadcaster: a client whose buffer is full is
// disconnected and must resubscribe.
func (c *connection) enqueue(message Message) {
	c.sendMu.Lock()
	if c.done {
		c.sendMu.Unlock()
		return
	}
	select {
	case c.send <- message:
		c.sendMu.Unlock()
		return
	default:
	}
	c.sendMu.Unlock()

	c.hub.log.Warn("realtime client too slow, disconnecting", zap.String("user_id", c.userID))
	c.close()
}

func (c *connection) reply(event string, data any) {
	c.enqueue(Message{Stream: StreamControl, Event: event, Data: data})
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("realtime socket closed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		if len(strings.TrimSpace(string(payload))) == 0 {
			continue
		}
		c.handleControl(payload)
	}
}

func (c *connection) handleControl(payload []byte) {
	var frame controlMessage
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.reply("error", map[string]string{"message": "control frames must be JSON objects"})
		return
	}

	switch action := strings.ToLower(strings.TrimSpace(frame.Action)); action {
	case ActionSubscribe:
		rejected := c.hub.subscribe(c, frame.Streams)
		c.reply("subscribed", SubscriptionAck{Active: c.hub.activeStreams(c), Rejected: rejected})
	case ActionUnsubscribe:
		c.hub.unsubscribe(c, frame.Streams)
		c.reply("unsubscribed", SubscriptionAck{Active: c.hub.activeStreams(c)})
	case ActionPing:
		c.reply("pong", nil)
	default:
		c.reply("error", map[string]string{"message": "unknown action " + action})
	}
}

func (c *connection) writeLoop() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case message, open := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				c.hub.log.Debug("realtime write failed", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-keepalive.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close is idempotent; the write loop drains and sends a close frame.
func (c *connection) close() {
	c.sendMu.Lock()
	if c.done {
		c.sendMu.Unlock()
		return
	}
	c.done = true
	close(c.send)
	c.sendMu.Unlock()

	c.hub.unregister(c)
}

func (c *connection) mayJoin(stream string) bool {
	if c.allowed == nil {
		return true
	}
	_, ok := c.allowed[stream]
	return ok
}

func sortedStreams(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for stream := range set {
		out = append(out, stream)
	}
	sort.Strings(out)
	return out
}
