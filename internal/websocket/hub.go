package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a live update pushed to clients watching a poll.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients and the polls each one watches.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]map[int64]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]map[int64]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = make(map[int64]struct{})
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Watch subscribes a registered client to updates of one poll.
func (h *Hub) Watch(c *Client, pollID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if polls, ok := h.clients[c]; ok {
		polls[pollID] = struct{}{}
	}
}

func (h *Hub) Unwatch(c *Client, pollID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if polls, ok := h.clients[c]; ok {
		delete(polls, pollID)
	}
}

// Publish sends msg to every client watching pollID.
func (h *Hub) Publish(pollID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c, polls := range h.clients {
		if _, ok := polls[pollID]; !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the publisher.
			h.logger.Debug("dropped message", "poll_id", pollID, "type", msg.Type)
		}
	}
}

// PollChanged implements poll.Notifier.
func (h *Hub) PollChanged(pollID int64, action string) {
	h.Publish(pollID, NewMessage("poll", action, pollID, nil))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
