package queue

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/hub"
	"taskuno-backend/internal/models"
)

const defaultQueueName = "task-events-queue"

// QueueName resolves the task events queue, defaulting when unset.
func QueueName() string {
	if name := os.Getenv("TASK_EVENTS_QUEUE"); name != "" {
		return name
	}
	return defaultQueueName
}

// Publisher pushes task events to downstream consumers.
type Publisher interface {
	Publish(event *models.TaskEvent)
}

// Producer writes events onto the Redis queue and mirrors them to live
// websocket subscribers. Publish failures never fail the request that
// triggered them.
type Producer struct {
	cache cache.Client
	hub   *hub.Hub
	queue string
}

func NewProducer(cacheClient cache.Client, eventHub *hub.Hub) *Producer {
	return &Producer{
		cache: cacheClient,
		hub:   eventHub,
		queue: QueueName(),
	}
}

func (p *Producer) Publish(event *models.TaskEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR marshaling %s event for task %d: %v", event.EventType, event.TaskID, err)
		return
	}

	if err := p.cache.Enqueue(p.queue, payload); err != nil {
		log.Printf("WARN enqueueing %s event for task %d: %v", event.EventType, event.TaskID, err)
	}

	if p.hub != nil {
		p.hub.Broadcast(event)
	}
}
