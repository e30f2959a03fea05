package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/mailer"
	"taskuno-backend/internal/models"
)

const (
	dequeueTimeout = 5 * time.Second
	reconnectDelay = 2 * time.Second
)

// EmailLogStore records delivery attempts.
type EmailLogStore interface {
	CreateEmailLog(ctx context.Context, e *models.EmailLog) error
	MarkEmailSent(ctx context.Context, id int64) error
	MarkEmailFailed(ctx context.Context, id int64) error
}

// EmailConsumer drains the task events queue and sends a notification to the
// assignee and the reporting owner of each event.
type EmailConsumer struct {
	cache   cache.Client
	store   EmailLogStore
	sender  mailer.Sender
	queue   string
	running atomic.Bool
}

func NewEmailConsumer(cacheClient cache.Client, store EmailLogStore, sender mailer.Sender, queue string) *EmailConsumer {
	return &EmailConsumer{
		cache:  cacheClient,
		store:  store,
		sender: sender,
		queue:  queue,
	}
}

// Running reports whether the consume loop is active.
func (c *EmailConsumer) Running() bool {
	return c.running.Load()
}

// Start runs the consume loop in a goroutine until ctx is cancelled.
func (c *EmailConsumer) Start(ctx context.Context) {
	c.running.Store(true)
	go func() {
		defer c.running.Store(false)
		for {
			select {
			case <-ctx.Done():
				log.Println("INFO Email consumer stopped")
				return
			default:
			}

			payload, err := c.cache.BlockingDequeue(ctx, c.queue, dequeueTimeout)
			if err != nil {
				if errors.Is(err, cache.ErrNoData) || errors.Is(err, context.Canceled) {
					continue
				}
				log.Printf("WARN Email consumer dequeue error: %v", err)
				time.Sleep(reconnectDelay)
				continue
			}

			c.handle(ctx, payload)
		}
	}()
	log.Printf("INFO Email consumer started on queue %q", c.queue)
}

func (c *EmailConsumer) handle(ctx context.Context, payload []byte) {
	var event models.TaskEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("WARN Email consumer dropping malformed payload: %v", err)
		return
	}

	for _, to := range recipients(&event) {
		c.deliver(ctx, to, &event)
	}
}

func (c *EmailConsumer) deliver(ctx context.Context, to string, event *models.TaskEvent) {
	entry := &models.EmailLog{
		ToEmail: to,
		Subject: mailer.Subject(event),
		Body:    mailer.Body(event),
		Status:  models.EmailStatusPending,
	}
	if err := c.store.CreateEmailLog(ctx, entry); err != nil {
		log.Printf("WARN Email consumer log create error: %v", err)
	}

	if err := c.sender.Send(entry.ToEmail, entry.Subject, entry.Body); err != nil {
		// Dev mode: the mailer logged the message, the record stays pending.
		if errors.Is(err, mailer.ErrNotConfigured) {
			return
		}
		log.Printf("WARN Email consumer send to %s failed: %v", to, err)
		if entry.ID != 0 {
			if err := c.store.MarkEmailFailed(ctx, entry.ID); err != nil {
				log.Printf("WARN Email consumer log update error: %v", err)
			}
		}
		return
	}

	if entry.ID != 0 {
		if err := c.store.MarkEmailSent(ctx, entry.ID); err != nil {
			log.Printf("WARN Email consumer log update error: %v", err)
		}
	}
	log.Printf("INFO Email sent to %s for %s event on task %d", to, event.EventType, event.TaskID)
}

// recipients deduplicates the assignee and reporting owner addresses.
func recipients(event *models.TaskEvent) []string {
	var out []string
	if event.AssignedToEmail != "" {
		out = append(out, event.AssignedToEmail)
	}
	if event.ReportingToEmail != "" && event.ReportingToEmail != event.AssignedToEmail {
		out = append(out, event.ReportingToEmail)
	}
	return out
}
