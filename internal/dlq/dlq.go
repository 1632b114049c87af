// Package dlq stores messages that could not be processed after exhausting
// their delivery budget, keeping them inspectable for operators.
package dlq

import (
	"context"
	"time"
)

// FailedMessage is one dead-lettered message together with the failure
// context captured at the time it was written.
type FailedMessage struct {
	// Payload is the original message body, unmodified.
	Payload []byte `json:"payload"`

	// Reason classifies the failure ("decode", "send").
	Reason string `json:"reason"`

	// Cause is the final error message.
	Cause string `json:"cause"`

	// Attempts is the number of deliveries consumed before giving up.
	Attempts int `json:"attempts"`

	// FailedAt is when the message was dead-lettered.
	FailedAt time.Time `json:"failedAt"`
}

// DeadLetter receives messages that processing has given up on.
type DeadLetter interface {
	// Write records a failed message. Write must not fail because of the
	// payload contents; the payload is opaque.
	Write(ctx context.Context, payload []byte, reason string, cause error, attempts int) error
}
