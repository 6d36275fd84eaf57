package memory

import (
	"context"
	"sync"
	"time"
)

// EventDeduper is an in-memory implementation of app.EventDeduper.
type EventDeduper struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewEventDeduper(ttl time.Duration) *EventDeduper {
	return &EventDeduper{
		ttl:   ttl,
		clock: time.Now,
		seen:  make(map[string]time.Time),
	}
}

func (d *EventDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	if expiresAt, ok := d.seen[id]; ok && (d.ttl <= 0 || expiresAt.After(now)) {
		return false, nil
	}
	d.seen[id] = now.Add(d.ttl)
	d.pruneLocked(now)
	return true, nil
}

func (d *EventDeduper) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func (d *EventDeduper) pruneLocked(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for id, expiresAt := range d.seen {
		if !expiresAt.After(now) {
			delete(d.seen, id)
		}
	}
}
