// Package events defines the order event envelope and its codec.
//
// The envelope is the only contract between the order service and its
// consumers: an event-type tag plus an opaque JSON string payload. The two
// levels are encoded in separate passes so a consumer can route on the
// event type without parsing the payload, and so the payload stays
// independently parseable from the envelope.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/gdev-ltda/orderflow/internal/models"
)

// EventType tags the order mutation that produced an envelope.
type EventType string

const (
	EventOrderCreated EventType = "ORDER_CREATED"
	EventOrderDeleted EventType = "ORDER_DELETED"
)

// Envelope is the transport-neutral wrapper published for every order
// mutation. Data holds the JSON-encoded OrderEvent as a string.
type Envelope struct {
	EventType EventType `json:"eventType"`
	Data      string    `json:"data"`
}

// OrderEvent is the inner payload carried by an envelope.
type OrderEvent struct {
	Email        string              `json:"email"`
	OrderID      string              `json:"orderId"`
	Shipping     models.ShippingInfo `json:"shipping"`
	Billing      models.BillingInfo  `json:"billing"`
	ProductCodes []string            `json:"productCodes"`
	RequestID    string              `json:"requestId"`
}

// DecodeError reports a malformed envelope or payload. Decoding failures
// are fatal for the message: retrying cannot fix malformed data, so the
// error is surfaced to the consumer instead of silently dropped.
type DecodeError struct {
	Stage string // "envelope" or "data"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode builds an envelope from an order snapshot. The payload is
// serialized first, then wrapped, so the result round-trips through
// Decode and DecodeData without loss.
func Encode(eventType EventType, order *models.Order, requestID string) (*Envelope, error) {
	event := OrderEvent{
		Email:        order.Email,
		OrderID:      order.ID,
		Shipping:     order.Shipping,
		Billing:      order.Billing,
		ProductCodes: order.ProductCodes(),
		RequestID:    requestID,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}

	return &Envelope{
		EventType: eventType,
		Data:      string(data),
	}, nil
}

// Marshal serializes the envelope for transport.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a raw envelope off the wire.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Stage: "envelope", Err: err}
	}
	switch env.EventType {
	case EventOrderCreated, EventOrderDeleted:
	default:
		return nil, &DecodeError{Stage: "envelope", Err: fmt.Errorf("unknown event type %q", env.EventType)}
	}
	return &env, nil
}

// DecodeData parses the inner payload of an already-decoded envelope.
func DecodeData(data string) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, &DecodeError{Stage: "data", Err: err}
	}
	return &event, nil
}
