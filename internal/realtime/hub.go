// Package realtime fans booking changes out to connected websocket clients.
package realtime

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/gigbook/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Publisher is the narrow interface services use to push messages.
type Publisher interface {
	BroadcastToUser(stream, userID string, message Message)
	BroadcastToUsers(stream string, userIDs []string, message Message)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins permits cross-origin websocket upgrades from the listed
// origins in addition to same-origin and loopback requests. "*" allows any.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				h.origins[hostWithoutPort(origin)] = struct{}{}
			}
		}
	}
}

// Hub coordinates realtime streams for connected clients, keyed by stream then user.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[string]map[*connection]struct{}
	upgrader      websocket.Upgrader
	origins       map[string]struct{}
	log           *zap.Logger
}

var _ Publisher = (*Hub)(nil)

// NewHub constructs a realtime hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscriptions: make(map[string]map[string]map[*connection]struct{}),
		origins:       make(map[string]struct{}),
		log:           logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve upgrades the HTTP connection to a WebSocket and registers the client
// on the requested streams. A nil allowed set permits every stream.
func (h *Hub) Serve(userID string, streams []string, allowed map[string]struct{}, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID, allowed)
	h.subscribe(client, streams)

	go client.writeLoop()
	client.readLoop()
}

// BroadcastToUser delivers a message to all connections for the user on a stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || userID == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.subscriptions[stream][userID]))
	for client := range h.subscriptions[stream][userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	message.Stream = stream
	for _, client := range targets {
		client.enqueue(message)
	}
}

// BroadcastToUsers delivers a message to each distinct user on the stream.
func (h *Hub) BroadcastToUsers(stream string, userIDs []string, message Message) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		h.BroadcastToUser(stream, userID, message)
	}
}

// Subscribers returns how many connections the user has open on a stream.
func (h *Hub) Subscribers(stream, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[normalizeStream(stream)][userID])
}

// subscribe joins the client to each permitted stream and returns the ones it
// may not join.
func (h *Hub) subscribe(client *connection, streams []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var rejected []string
	for _, stream := range uniqueStreams(streams) {
		if !client.mayJoin(stream) {
			rejected = append(rejected, stream)
			continue
		}
		if _, exists := client.streams[stream]; exists {
			continue
		}

		byUser := h.subscriptions[stream]
		if byUser == nil {
			byUser = make(map[string]map[*connection]struct{})
			h.subscriptions[stream] = byUser
		}
		if byUser[client.userID] == nil {
			byUser[client.userID] = make(map[*connection]struct{})
		}

		client.streams[stream] = struct{}{}
		byUser[client.userID][client] = struct{}{}
	}
	if len(rejected) > 0 {
		h.log.Debug("rejected realtime streams", zap.Strings("streams", rejected), zap.String("user_id", client.userID))
	}
	return rejected
}

func (h *Hub) activeStreams(client *connection) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedStreams(client.streams)
}

func (h *Hub) unsubscribe(client *connection, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		h.removeLocked(client, stream)
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range client.streams {
		h.removeLocked(client, stream)
	}
}

func (h *Hub) removeLocked(client *connection, stream string) {
	delete(client.streams, stream)

	byUser, ok := h.subscriptions[stream]
	if !ok {
		return
	}
	clients := byUser[client.userID]
	delete(clients, client)
	if len(clients) == 0 {
		delete(byUser, client.userID)
	}
	if len(byUser) == 0 {
		delete(h.subscriptions, stream)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := hostWithoutPort(origin)
	if originHost == hostWithoutPort(r.Host) || isLoopback(originHost) {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	_, ok := h.origins[originHost]
	return ok
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	seen := make(map[string]struct{}, len(streams))
	var result []string
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if stream == "" {
			continue
		}
		if _, ok := seen[stream]; ok {
			continue
		}
		seen[stream] = struct{}{}
		result = append(result, stream)
	}
	return result
}
