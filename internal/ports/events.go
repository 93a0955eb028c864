package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    string
	LastErrorAt  *time.Time
	CreatedAt    time.Time
}

// OutboxRepository stores purchase lifecycle events in the same store as the
// ledger so a completion and its event cannot diverge.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, key string, payload []byte) error
}
