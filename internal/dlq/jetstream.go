package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gdev-ltda/orderflow/internal/messaging"
	"github.com/gdev-ltda/orderflow/internal/metrics"
)

// JetStreamQueue persists failed messages in a dedicated JetStream stream
// with a long retention window.
type JetStreamQueue struct {
	js         jetstream.JetStream
	streamName string
}

// NewJetStreamQueue creates a queue writing to the named stream. The stream
// must already exist and capture the DLQ subject space.
func NewJetStreamQueue(js jetstream.JetStream, streamName string) *JetStreamQueue {
	return &JetStreamQueue{js: js, streamName: streamName}
}

// Write publishes the failure record to the DLQ stream, classified by
// reason in the subject.
func (q *JetStreamQueue) Write(ctx context.Context, payload []byte, reason string, cause error, attempts int) error {
	fm := FailedMessage{
		Payload:  payload,
		Reason:   reason,
		Attempts: attempts,
		FailedAt: time.Now(),
	}
	if cause != nil {
		fm.Cause = cause.Error()
	}

	data, err := json.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal failed message: %w", err)
	}

	subject := messaging.SubjectEmailsDLQPrefix + "." + reason
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}

	metrics.DeadLettersWritten.Inc()
	return nil
}

// List reads up to limit dead letters without consuming them.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]*FailedMessage, error) {
	stream, err := q.js.Stream(ctx, q.streamName)
	if err != nil {
		return nil, fmt.Errorf("get dlq stream: %w", err)
	}

	// Ephemeral consumer so inspection leaves the stream untouched.
	consumer, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckNonePolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create inspection consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch dead letters: %w", err)
	}

	var out []*FailedMessage
	for msg := range batch.Messages() {
		var fm FailedMessage
		if err := json.Unmarshal(msg.Data(), &fm); err != nil {
			continue // unreadable entries are skipped, not fatal
		}
		out = append(out, &fm)
	}
	return out, nil
}

// Purge removes every dead letter from the stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	stream, err := q.js.Stream(ctx, q.streamName)
	if err != nil {
		return fmt.Errorf("get dlq stream: %w", err)
	}
	if err := stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	return nil
}

// Stats returns the number of dead letters currently retained.
func (q *JetStreamQueue) Stats(ctx context.Context) (uint64, error) {
	stream, err := q.js.Stream(ctx, q.streamName)
	if err != nil {
		return 0, fmt.Errorf("get dlq stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("get dlq stream info: %w", err)
	}
	return info.State.Msgs, nil
}
