package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate tells dashboard clients that an account's balance changed and
// aggregates should be re-read.
type BalanceUpdate struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// Hub fans balance updates out to clients subscribed per financial account.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*Client]struct{})
	}
	h.clients[accountID][client] = struct{}{}
}

func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		return
	}
	delete(h.clients[accountID], client)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
}

func (h *Hub) BroadcastBalance(accountID string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[accountID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
