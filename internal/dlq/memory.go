package dlq

import (
	"context"
	"sync"
	"time"

	"github.com/gdev-ltda/orderflow/internal/metrics"
)

// MemoryQueue is an in-memory DeadLetter for tests.
type MemoryQueue struct {
	mu       sync.Mutex
	messages []*FailedMessage
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Write(_ context.Context, payload []byte, reason string, cause error, attempts int) error {
	fm := &FailedMessage{
		Payload:  append([]byte(nil), payload...),
		Reason:   reason,
		Attempts: attempts,
		FailedAt: time.Now(),
	}
	if cause != nil {
		fm.Cause = cause.Error()
	}

	q.mu.Lock()
	q.messages = append(q.messages, fm)
	q.mu.Unlock()

	metrics.DeadLettersWritten.Inc()
	return nil
}

// Messages returns a snapshot of everything written so far.
func (q *MemoryQueue) Messages() []*FailedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*FailedMessage(nil), q.messages...)
}

// Len returns the number of dead letters written.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
