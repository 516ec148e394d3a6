// internal/websocket/hub.go
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub tracks connected clients by user ID and pushes assignment
// notifications to the employee who just received a lead.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client
	push       chan *pushMessage

	logger *zap.Logger
}

type pushMessage struct {
	userID int64
	data   []byte
}

// AssignmentNotice is the frame pushed when a lead lands in a user's queue.
type AssignmentNotice struct {
	Type       string    `json:"type"`
	LeadID     int64     `json:"lead_id"`
	LeadName   string    `json:"lead_name"`
	AssignedBy int64     `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		push:       make(chan *pushMessage, 256),
		logger:     logger,
	}
}

// Run processes registration and push traffic. Call once in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			h.logger.Debug("ws client registered", zap.Int64("user_id", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.userID]; ok {
				if conns[client] {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.push:
			h.mu.RLock()
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop the frame rather than block the hub.
					h.logger.Warn("ws send buffer full, dropping frame", zap.Int64("user_id", msg.userID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyAssigned pushes an assignment notice to every connection of the new
// assignee. No-op when the user is offline.
func (h *Hub) NotifyAssigned(userID int64, notice AssignmentNotice) {
	if notice.Type == "" {
		notice.Type = "lead_assigned"
	}

	data, err := json.Marshal(notice)
	if err != nil {
		h.logger.Error("failed to marshal assignment notice", zap.Error(err))
		return
	}

	select {
	case h.push <- &pushMessage{userID: userID, data: data}:
	default:
		h.logger.Warn("ws push queue full, dropping notice", zap.Int64("user_id", userID))
	}
}
