package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/models"
)

type enqueueStub struct {
	queues   []string
	payloads [][]byte
}

func (s *enqueueStub) Enqueue(queue string, payload []byte) error {
	s.queues = append(s.queues, queue)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *enqueueStub) BlockingDequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	return nil, cache.ErrNoData
}
func (s *enqueueStub) QueueLength(queue string) (int64, error)                     { return 0, nil }
func (s *enqueueStub) BlacklistToken(tokenHash string, ttl time.Duration) error    { return nil }
func (s *enqueueStub) IsTokenBlacklisted(tokenHash string) (bool, error)           { return false, nil }
func (s *enqueueStub) IncrWithTTL(key string, window time.Duration) (int64, error) { return 0, nil }
func (s *enqueueStub) SetChart(orgID int64, data []byte, ttl time.Duration) error  { return nil }
func (s *enqueueStub) GetChart(orgID int64) ([]byte, error)                        { return nil, cache.ErrNoData }
func (s *enqueueStub) InvalidateChart(orgID int64) error                           { return nil }
func (s *enqueueStub) Ping() error                                                 { return nil }
func (s *enqueueStub) Close() error                                                { return nil }

func TestPublishFillsIDAndTimestamp(t *testing.T) {
	stub := &enqueueStub{}
	p := NewProducer(stub, nil)

	p.Publish(&models.TaskEvent{
		EventType:      models.EventTaskCreated,
		TaskID:         50,
		TaskTitle:      "Fix login",
		OrganizationID: 1,
	})

	if len(stub.payloads) != 1 {
		t.Fatalf("expected one enqueued payload, got %d", len(stub.payloads))
	}
	if stub.queues[0] != defaultQueueName {
		t.Fatalf("unexpected queue: %q", stub.queues[0])
	}

	var event models.TaskEvent
	if err := json.Unmarshal(stub.payloads[0], &event); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if event.EventID == "" {
		t.Fatal("event id not filled")
	}
	if event.Timestamp.IsZero() {
		t.Fatal("timestamp not filled")
	}
	if event.EventType != models.EventTaskCreated || event.TaskID != 50 {
		t.Fatalf("payload corrupted: %+v", event)
	}
}

func TestQueueNameOverride(t *testing.T) {
	t.Setenv("TASK_EVENTS_QUEUE", "custom-queue")
	if got := QueueName(); got != "custom-queue" {
		t.Fatalf("expected override, got %q", got)
	}

	t.Setenv("TASK_EVENTS_QUEUE", "")
	if got := QueueName(); got != defaultQueueName {
		t.Fatalf("expected default, got %q", got)
	}
}
