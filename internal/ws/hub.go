package ws

import (
	"encoding/json"
	"sync"
	"time"

	"stcoins/internal/models"
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	UserID uint
	Send   chan []byte
	Hub    *Hub
	mu     sync.Mutex
	closed bool
}

func NewClient(userID uint) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, 64)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// BalanceEvent is pushed after every committed ledger mutation of the user.
type BalanceEvent struct {
	Type      string    `json:"type"`
	Balance   int64     `json:"balance"`
	Delta     int64     `json:"delta"`
	EntryType string    `json:"entry_type"`
	Reference string    `json:"reference,omitempty"`
	AsOf      time.Time `json:"as_of"`
}

// Hub fans balance events out to each user's open connections.
type Hub struct {
	mu     sync.RWMutex
	byUser map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byUser: make(map[uint]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// PublishEntry is registered as a ledger commit listener.
func (h *Hub) PublishEntry(e models.LedgerEntry) {
	h.BroadcastToUser(e.UserID, BalanceEvent{
		Type:      "balance",
		Balance:   e.BalanceAfter,
		Delta:     e.Delta,
		EntryType: e.Type,
		Reference: e.Reference,
		AsOf:      e.AppliedAt,
	})
}

// BroadcastToUser drops the message for a client whose buffer is full.
func (h *Hub) BroadcastToUser(userID uint, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		select {
		case c.Send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
