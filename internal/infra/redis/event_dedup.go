package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper remembers processed webhook event IDs in Redis so replays are
// skipped across instances. Each ID is a SETNX key that expires after ttl.
type EventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventDeduper(client *redis.Client, ttl time.Duration) *EventDeduper {
	return &EventDeduper{client: client, ttl: ttl}
}

func (d *EventDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.client.SetNX(ctx, d.key(id), "1", d.ttl).Result()
}

func (d *EventDeduper) Forget(ctx context.Context, id string) error {
	return d.client.Del(ctx, d.key(id)).Err()
}

func (d *EventDeduper) key(id string) string {
	return "stripe:event:" + id
}
