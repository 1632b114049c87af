package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gdev-ltda/orderflow/internal/messaging"
	"github.com/gdev-ltda/orderflow/internal/metrics"
)

// Publisher publishes order event envelopes to the broadcast bus.
//
// Publish is fire-and-forget relative to the order mutation: the caller
// awaits completion only to obtain a message id for logging. The publisher
// never retries; redelivery is a consumer-group concern.
type Publisher struct {
	bus messaging.Publisher
}

// NewPublisher creates a publisher on top of the given bus.
func NewPublisher(bus messaging.Publisher) *Publisher {
	return &Publisher{bus: bus}
}

// Publish sends the envelope to the subject derived from its event type
// and returns the assigned message id.
func (p *Publisher) Publish(ctx context.Context, env *Envelope) (string, error) {
	subject, err := subjectFor(env.EventType)
	if err != nil {
		return "", err
	}

	data, err := env.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	messageID := uuid.New().String()
	msg := &messaging.Message{
		Subject:   subject,
		Data:      data,
		Metadata:  map[string]string{messaging.HeaderMessageID: messageID},
		Timestamp: time.Now().UTC(),
	}

	if err := p.bus.PublishMsg(ctx, msg); err != nil {
		metrics.PublishFailures.Inc()
		return "", fmt.Errorf("publish %s: %w", subject, err)
	}

	metrics.EventsPublished.WithLabelValues(string(env.EventType)).Inc()
	return messageID, nil
}

// subjectFor maps an event type to its bus subject. The mapping is closed:
// an unknown type is an error, not a fallthrough.
func subjectFor(eventType EventType) (string, error) {
	switch eventType {
	case EventOrderCreated:
		return messaging.SubjectOrdersCreated, nil
	case EventOrderDeleted:
		return messaging.SubjectOrdersDeleted, nil
	default:
		return "", fmt.Errorf("no subject for event type %q", eventType)
	}
}
