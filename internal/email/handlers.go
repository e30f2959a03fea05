package email

import (
	"encoding/json"
	"net/http"

	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/workers"
)

type Handler struct {
	cache    cache.Client
	consumer *workers.EmailConsumer
	queue    string
}

func NewHandler(cacheClient cache.Client, consumer *workers.EmailConsumer, queue string) *Handler {
	return &Handler{cache: cacheClient, consumer: consumer, queue: queue}
}

// Health reports liveness of the email worker.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !h.consumer.Running() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status, "service": "email"})
}

// Status reports the consumer state and the queue backlog.
// @Summary Email worker status
// @Tags email
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /email/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	length, err := h.cache.QueueLength(h.queue)
	if err != nil {
		http.Error(w, "Failed to read queue length", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"consumer_running": h.consumer.Running(),
		"queue":            h.queue,
		"queue_length":     length,
	})
}
