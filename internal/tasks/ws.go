package tasks

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"taskuno-backend/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Events upgrades to a websocket and streams the organization's task events
// until the client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN websocket upgrade failed: %v", err)
		return
	}

	id := h.hub.Add(claims.OrgID, conn)
	defer func() {
		h.hub.Remove(id)
		conn.Close()
	}()

	// Drain control frames; the client only listens.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
