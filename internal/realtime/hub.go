// Package realtime is the in-app channel: websocket clients registered per
// (user, organization), optionally fanned out across instances over AMQP.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/metrics"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// ErrNotConnected is returned by Push when the recipient has no open socket
var ErrNotConnected = errors.New("recipient has no open realtime connection")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Payload is the normalized notification pushed to clients
type Payload struct {
	ID               string                      `json:"id"`
	Type             domain.NotificationType     `json:"type"`
	NotificationType domain.NotificationType     `json:"notification_type"`
	Title            string                      `json:"title"`
	Message          string                      `json:"message"`
	Priority         domain.NotificationPriority `json:"priority"`
	IsRead           bool                        `json:"is_read"`
	CreatedAt        time.Time                   `json:"created_at"`
	ProjectID        string                      `json:"project_id,omitempty"`
	TaskID           string                      `json:"task_id,omitempty"`
	ContextCardID    string                      `json:"context_card_id,omitempty"`
	DecisionLogID    string                      `json:"decision_log_id,omitempty"`
	HandoffSummaryID string                      `json:"handoff_summary_id,omitempty"`
	Source           string                      `json:"source,omitempty"`
	ThreadID         string                      `json:"thread_id,omitempty"`
}

// NewPayload extracts the push payload from n
func NewPayload(n *domain.Notification) Payload {
	return Payload{
		ID:               n.ID,
		Type:             n.Type,
		NotificationType: n.Type,
		Title:            n.Title,
		Message:          n.Message,
		Priority:         n.Priority,
		IsRead:           n.IsRead,
		CreatedAt:        n.CreatedAt,
		ProjectID:        n.ProjectID,
		TaskID:           n.TaskID,
		ContextCardID:    n.ContextCardID,
		DecisionLogID:    n.DecisionLogID,
		HandoffSummaryID: n.HandoffSummaryID,
		Source:           n.Source,
		ThreadID:         n.ThreadID,
	}
}

// Frame is the websocket message envelope
type Frame struct {
	Type string  `json:"type"`
	Data Payload `json:"data"`
}

type recipient struct {
	userID string
	orgID  string
}

// Client is one websocket connection
type Client struct {
	key  recipient
	send chan []byte
	hub  *Hub
	mu   sync.Mutex
	done bool
}

// Close unregisters the client and stops its writer
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	c.hub.unregister(c)
	close(c.send)
}

func (c *Client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub tracks open connections per (user, organization)
type Hub struct {
	mu      sync.RWMutex
	clients map[recipient]map[*Client]struct{}
	log     *logger.Logger
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[recipient]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a client for (userID, orgID). The caller must Close it.
func (h *Hub) Register(userID, orgID string) *Client {
	c := &Client{
		key:  recipient{userID: userID, orgID: orgID},
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.key] == nil {
		h.clients[c.key] = make(map[*Client]struct{})
	}
	h.clients[c.key][c] = struct{}{}
	metrics.RealtimeConnections.Inc()
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.clients[c.key]; m != nil {
		if _, ok := m[c]; ok {
			delete(m, c)
			metrics.RealtimeConnections.Dec()
		}
		if len(m) == 0 {
			delete(h.clients, c.key)
		}
	}
}

// Push sends payload to every socket of (userID, orgID). It fails with
// ErrNotConnected when no socket accepted the frame.
func (h *Hub) Push(_ context.Context, userID, orgID string, payload Payload) error {
	data, err := json.Marshal(Frame{Type: "notification", Data: payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	m := h.clients[recipient{userID: userID, orgID: orgID}]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	accepted := 0
	for _, c := range clients {
		if c.offer(data) {
			accepted++
		}
	}
	if accepted == 0 {
		return ErrNotConnected
	}
	return nil
}

// ClientCount returns the number of open connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.clients {
		n += len(m)
	}
	return n
}

// ServeWS upgrades the request and streams pushes for (userID, orgID) until
// the client disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID, orgID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "user_id", userID, "tenant_id", orgID, "error", err)
		return
	}
	defer conn.Close()

	client := h.Register(userID, orgID)
	defer client.Close()

	go writePump(client, conn)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump copies frames from the client's buffer to the connection
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
