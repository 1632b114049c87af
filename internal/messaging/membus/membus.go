// Package membus is an in-memory implementation of messaging.Client.
// It mirrors NATS subject semantics (token wildcards, queue groups) and
// delivers synchronously, which keeps tests deterministic. It is meant for
// tests and local development, not production.
package membus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gdev-ltda/orderflow/internal/messaging"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("membus: bus closed")

// Bus is an in-memory message bus.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish sends a message to the specified subject.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	return b.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

// PublishMsg delivers the message to every matching plain subscription and
// to one member of each matching queue group.
func (b *Bus) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	var targets []*subscription
	seenQueues := make(map[string]bool)
	for _, s := range b.subs {
		if !s.valid || !MatchSubject(s.subject, msg.Subject) {
			continue
		}
		if s.queue != "" {
			if seenQueues[s.queue] {
				continue
			}
			seenQueues[s.queue] = true
		}
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		// Handler errors stay inside the subscription, as with NATS core.
		_ = s.handler(ctx, copyMessage(msg))
	}
	return nil
}

// Subscribe creates a fan-out subscription.
func (b *Bus) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	return b.add(subject, "", handler)
}

// QueueSubscribe creates a queue-group subscription.
func (b *Bus) QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	return b.add(subject, queue, handler)
}

func (b *Bus) add(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &subscription{bus: b, subject: subject, queue: queue, handler: handler, valid: true}
	b.subs = append(b.subs, s)
	return s, nil
}

// Close invalidates all subscriptions and rejects further publishes.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, s := range b.subs {
		s.valid = false
	}
	b.subs = nil
	return nil
}

// Drain is equivalent to Close; delivery is synchronous so there are no
// in-flight messages to wait for.
func (b *Bus) Drain() error {
	return b.Close()
}

// IsConnected reports whether the bus is still open.
func (b *Bus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

type subscription struct {
	bus     *Bus
	subject string
	queue   string
	handler messaging.MessageHandler
	valid   bool
}

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.valid = false
	return nil
}

func (s *subscription) Subject() string {
	return s.subject
}

func (s *subscription) IsValid() bool {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	return s.valid
}

// MatchSubject reports whether a concrete subject matches a subscription
// pattern using NATS token rules: "*" matches exactly one token, ">"
// matches one or more trailing tokens.
func MatchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

func copyMessage(msg *messaging.Message) *messaging.Message {
	out := &messaging.Message{
		Subject:   msg.Subject,
		Data:      append([]byte(nil), msg.Data...),
		Timestamp: msg.Timestamp,
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	if msg.Metadata != nil {
		out.Metadata = make(map[string]string, len(msg.Metadata))
		for k, v := range msg.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
