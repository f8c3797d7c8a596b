package cache

import (
	"context"
	"time"

	"planreminder/internal/model"
)

// SentRecord is what the cache keeps about the last delivered reminder of a
// kind for a client.
type SentRecord struct {
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

// SentLog records successful reminder deliveries so the dashboard and resume
// logic can tell when a client was last notified.
type SentLog interface {
	RecordSent(ctx context.Context, clientID string, kind model.Kind, messageID string, sentAt time.Time) error
	LastSent(ctx context.Context, clientID string, kind model.Kind) (*SentRecord, error)
}
