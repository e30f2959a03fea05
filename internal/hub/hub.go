package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"taskuno-backend/internal/models"
)

type client struct {
	id    int64
	orgID int64
	conn  *websocket.Conn
}

// Hub fans task events out to websocket subscribers, keyed by organization.
type Hub struct {
	clients map[int64]*client
	nextID  int64
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]*client),
	}
}

// Add registers a connection and returns its subscriber id.
func (h *Hub) Add(orgID int64, conn *websocket.Conn) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.clients[id] = &client{id: id, orgID: orgID, conn: conn}
	log.Printf("INFO websocket subscriber %d connected (org %d). Total clients: %d", id, orgID, len(h.clients))
	return id
}

func (h *Hub) Remove(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		log.Printf("INFO websocket subscriber %d disconnected. Total clients: %d", id, len(h.clients))
	}
}

// Broadcast sends the event to every subscriber of its organization.
func (h *Hub) Broadcast(event *models.TaskEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR marshaling task event for broadcast: %v", err)
		return
	}

	for _, c := range h.clients {
		if c.orgID != event.OrganizationID {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WARN sending task event to subscriber %d: %v", c.id, err)
		}
	}
}
