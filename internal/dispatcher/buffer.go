package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Delivery is one buffered message handed to the dispatcher, with explicit
// acknowledgment hooks.
type Delivery struct {
	// Data is the raw envelope payload.
	Data []byte

	// Attempts is how many times this message has been delivered,
	// including the current delivery.
	Attempts int

	ack func() error
	nak func() error
}

// Ack marks the delivery as successfully processed.
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nak requests redelivery.
func (d *Delivery) Nak() error {
	if d.nak == nil {
		return nil
	}
	return d.nak()
}

// Buffer is the durable queue the dispatcher drains in batches.
type Buffer interface {
	// Fetch returns up to batchSize deliveries, waiting up to maxWait for
	// the first one. An empty slice with a nil error means the wait
	// elapsed with nothing to do.
	Fetch(ctx context.Context, batchSize int, maxWait time.Duration) ([]*Delivery, error)
}

// JetStreamBuffer adapts a durable JetStream consumer to the Buffer
// interface.
type JetStreamBuffer struct {
	consumer jetstream.Consumer
}

// NewJetStreamBuffer wraps an existing durable consumer.
func NewJetStreamBuffer(consumer jetstream.Consumer) *JetStreamBuffer {
	return &JetStreamBuffer{consumer: consumer}
}

func (b *JetStreamBuffer) Fetch(ctx context.Context, batchSize int, maxWait time.Duration) ([]*Delivery, error) {
	batch, err := b.consumer.Fetch(batchSize, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, err
	}

	var deliveries []*Delivery
	for msg := range batch.Messages() {
		msg := msg
		attempts := 1
		if meta, err := msg.Metadata(); err == nil {
			attempts = int(meta.NumDelivered)
		}
		deliveries = append(deliveries, &Delivery{
			Data:     msg.Data(),
			Attempts: attempts,
			ack:      msg.Ack,
			nak:      msg.Nak,
		})
	}
	if err := batch.Error(); err != nil {
		return deliveries, err
	}
	return deliveries, nil
}

// MemoryBuffer is an in-memory Buffer for tests. Nak'd deliveries are
// requeued with an incremented attempt count.
type MemoryBuffer struct {
	mu      sync.Mutex
	queue   []*memoryEntry
	arrived chan struct{}
}

type memoryEntry struct {
	data     []byte
	attempts int
}

// NewMemoryBuffer creates an empty buffer.
func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{arrived: make(chan struct{}, 1)}
}

// Push enqueues a payload for delivery.
func (b *MemoryBuffer) Push(data []byte) {
	b.mu.Lock()
	b.queue = append(b.queue, &memoryEntry{data: append([]byte(nil), data...)})
	b.mu.Unlock()

	select {
	case b.arrived <- struct{}{}:
	default:
	}
}

// Len returns the number of queued entries.
func (b *MemoryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *MemoryBuffer) Fetch(ctx context.Context, batchSize int, maxWait time.Duration) ([]*Delivery, error) {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		if deliveries := b.take(batchSize); len(deliveries) > 0 {
			return deliveries, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-b.arrived:
		}
	}
}

func (b *MemoryBuffer) take(batchSize int) []*Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.queue)
	if n == 0 {
		return nil
	}
	if n > batchSize {
		n = batchSize
	}

	entries := b.queue[:n]
	b.queue = append([]*memoryEntry(nil), b.queue[n:]...)

	deliveries := make([]*Delivery, 0, n)
	for _, e := range entries {
		e := e
		e.attempts++
		deliveries = append(deliveries, &Delivery{
			Data:     e.data,
			Attempts: e.attempts,
			nak: func() error {
				b.requeue(e)
				return nil
			},
		})
	}
	return deliveries
}

func (b *MemoryBuffer) requeue(e *memoryEntry) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	b.mu.Unlock()

	select {
	case b.arrived <- struct{}{}:
	default:
	}
}
