// Package outbox relays routing events to downstream consumers with
// at-least-once delivery.
//
// Entries are written in the same unit of work as the audit event they
// describe. A Worker later publishes pending entries and marks them processed,
// so a crash between publish and mark yields a duplicate, never a loss.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one message waiting to be published.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	Attempts      int
}

// NewEntry builds an unprocessed entry with a fresh id.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}

// Store persists entries until they are published.
type Store interface {
	Enqueue(ctx context.Context, entry *Entry) error
	FetchPending(ctx context.Context, limit int) ([]Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	CountPending(ctx context.Context) (int, error)
}

// Publisher delivers one entry to the message bus.
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}
