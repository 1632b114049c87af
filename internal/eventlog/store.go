// Package eventlog records every order event as a short-lived audit entry.
//
// Entries carry their own expiry. The log is a sliding operational window
// for debugging the pipeline, not a permanent archive, so records disappear
// on their own once the TTL lapses.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gdev-ltda/orderflow/internal/events"
)

// DefaultTTL is the retention window applied to log records.
const DefaultTTL = 5 * time.Minute

// ErrRecordNotFound is returned when the requested log record is absent or
// already expired.
var ErrRecordNotFound = errors.New("event log record not found")

// RecordInfo is the operational detail attached to a log record.
type RecordInfo struct {
	OrderID      string   `json:"orderId"`
	ProductCodes []string `json:"productCodes"`
	MessageID    string   `json:"messageId"`
}

// Record is one event log entry. PK groups all events of an order, SK orders
// them by event type and arrival time. TTL is the absolute expiry in epoch
// seconds, CreatedAt the arrival time in epoch milliseconds.
type Record struct {
	PK        string     `json:"pk"`
	SK        string     `json:"sk"`
	TTL       int64      `json:"ttl"`
	Email     string     `json:"email"`
	CreatedAt int64      `json:"createdAt"`
	RequestID string     `json:"requestId"`
	EventType string     `json:"eventType"`
	Info      RecordInfo `json:"info"`
}

// NewRecord builds a log record for a decoded event at time now.
func NewRecord(env *events.Envelope, event *events.OrderEvent, messageID string, now time.Time, ttl time.Duration) *Record {
	millis := now.UnixMilli()
	return &Record{
		PK:        "#order_" + event.OrderID,
		SK:        string(env.EventType) + "#" + strconv.FormatInt(millis, 10),
		TTL:       now.Unix() + int64(ttl.Seconds()),
		Email:     event.Email,
		CreatedAt: millis,
		RequestID: event.RequestID,
		EventType: string(env.EventType),
		Info: RecordInfo{
			OrderID:      event.OrderID,
			ProductCodes: event.ProductCodes,
			MessageID:    messageID,
		},
	}
}

// Store persists records in Redis, one key per record, with the record TTL
// enforced by key expiry.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a Store. prefix namespaces the keys ("eventlog" if
// empty); ttl falls back to DefaultTTL when zero.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "eventlog"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// TTL returns the retention window applied to new records.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(pk, sk string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, pk, sk)
}

// Put writes a record. Re-processing the same event at the same millisecond
// produces the same key, so a redelivered message overwrites rather than
// duplicates.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.PK, rec.SK), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Get fetches one record by its full key pair.
func (s *Store) Get(ctx context.Context, pk, sk string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(pk, sk)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ListByOrder returns all unexpired records for an order.
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]*Record, error) {
	pattern := s.key("#order_"+orderID, "*")

	var records []*Record
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("get record %s: %w", iter.Val(), err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record %s: %w", iter.Val(), err)
		}
		records = append(records, &rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}
