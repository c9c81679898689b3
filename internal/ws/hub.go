package ws

import (
	"encoding/json"
	"sync"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/metrics"
)

// Hub fans reward events out to the connected sessions of each user. A user
// may hold several connections (tabs, devices).
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*Client]struct{})}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	c.Send <- []byte(`{"type":"` + MsgReady + `"}`)
	metrics.WSConnections.Inc()
	return true
}

// deliver queues msg for c unless c is already gone or its buffer is full.
// Send is only written under the hub lock so it is never written after close.
func (h *Hub) deliver(c *Client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.UserID][c]; !ok {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.Send)
	metrics.WSConnections.Dec()
}

// NotifyReward queues the event for every session of userID. It never
// blocks: a session whose buffer is full misses the event.
func (h *Hub) NotifyReward(userID int64, ev domain.RewardEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("ws: marshal reward event", "error", err)
		return
	}
	msg, err := json.Marshal(Message{Type: MsgReward, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	set := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		set = append(set, c)
	}
	h.mu.RUnlock()

	for _, c := range set {
		if !h.deliver(c, msg) {
			logger.Warn("ws: dropping reward event", "user_id", userID)
		}
	}
}

// Connections returns the number of open sessions of userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every session and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, set := range h.clients {
		for c := range set {
			close(c.Send)
			metrics.WSConnections.Dec()
		}
		delete(h.clients, userID)
	}
}
