package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which order events already produced an email, so a
// redelivered message does not mail the customer twice. The mark is written
// only after a successful send; the send itself stays at-least-once, the
// duplicate window is just narrowed to crashes between send and mark.
type Deduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDeduper creates a Deduper. Marks expire after ttl, which must exceed
// the buffer's redelivery horizon to be useful.
func NewDeduper(client *redis.Client, prefix string, ttl time.Duration) *Deduper {
	if prefix == "" {
		prefix = "email-sent"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *Deduper) key(orderID, eventType string) string {
	return fmt.Sprintf("%s:%s#%s", d.prefix, orderID, eventType)
}

// Seen reports whether the event was already handled.
func (d *Deduper) Seen(ctx context.Context, orderID, eventType string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(orderID, eventType)).Result()
	if err != nil {
		return false, fmt.Errorf("check dedupe mark: %w", err)
	}
	return n > 0, nil
}

// Mark records the event as handled.
func (d *Deduper) Mark(ctx context.Context, orderID, eventType string) error {
	if err := d.client.Set(ctx, d.key(orderID, eventType), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("set dedupe mark: %w", err)
	}
	return nil
}
