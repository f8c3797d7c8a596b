package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"planreminder/internal/model"
)

type RedisSentLog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSentLog(rdb *redis.Client, ttl time.Duration) *RedisSentLog {
	return &RedisSentLog{rdb: rdb, ttl: ttl}
}

func sentKey(clientID string, kind model.Kind) string {
	return fmt.Sprintf("sent:%s:%s", clientID, kind)
}

func (c *RedisSentLog) RecordSent(ctx context.Context, clientID string, kind model.Kind, messageID string, sentAt time.Time) error {
	val := SentRecord{
		MessageID: messageID,
		SentAt:    sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, sentKey(clientID, kind), b, c.ttl).Err()
}

// LastSent returns nil without error when no reminder of this kind was
// recorded for the client.
func (c *RedisSentLog) LastSent(ctx context.Context, clientID string, kind model.Kind) (*SentRecord, error) {
	raw, err := c.rdb.Get(ctx, sentKey(clientID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec SentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
