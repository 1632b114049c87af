// Package dispatcher drains the buffered order-created events and sends the
// confirmation emails.
//
// Delivery is at-least-once: a failed send is redelivered until the attempt
// budget runs out, then the message moves to the dead-letter queue. A
// dedupe mark written after each successful send keeps redeliveries from
// mailing the customer twice.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdev-ltda/orderflow/internal/dlq"
	"github.com/gdev-ltda/orderflow/internal/events"
	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/metrics"
)

// Config tunes the dispatch loop.
type Config struct {
	// BatchSize is the maximum number of messages pulled per fetch.
	BatchSize int

	// BatchWait is how long a fetch waits for the first message.
	BatchWait time.Duration

	// MaxAttempts is the delivery budget per message before it is
	// dead-lettered.
	MaxAttempts int
}

// DefaultConfig returns the standard dispatch tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:   5,
		BatchWait:   60 * time.Second,
		MaxAttempts: 3,
	}
}

// Dispatcher is the email consumer group worker.
type Dispatcher struct {
	buffer  Buffer
	deduper *Deduper
	mailer  Mailer
	dead    dlq.DeadLetter
	logger  *logging.Logger
	cfg     Config
}

// New creates a Dispatcher. Zero-valued Config fields fall back to
// DefaultConfig.
func New(buffer Buffer, deduper *Deduper, mailer Mailer, dead dlq.DeadLetter, logger *logging.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = def.BatchWait
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		buffer:  buffer,
		deduper: deduper,
		mailer:  mailer,
		dead:    dead,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run drains the buffer until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("email dispatcher started",
		"batch_size", d.cfg.BatchSize,
		"batch_wait", d.cfg.BatchWait,
		"max_attempts", d.cfg.MaxAttempts,
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := d.buffer.Fetch(ctx, d.cfg.BatchSize, d.cfg.BatchWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			d.logger.Error("fetch batch failed", "error", err)
			continue
		}
		if len(deliveries) == 0 {
			continue
		}

		d.processBatch(ctx, deliveries)
	}
}

// processBatch handles each delivery independently so one poisoned message
// never blocks its batch siblings.
func (d *Dispatcher) processBatch(ctx context.Context, deliveries []*Delivery) {
	var wg sync.WaitGroup
	for _, delivery := range deliveries {
		delivery := delivery
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.process(ctx, delivery)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, delivery *Delivery) {
	env, err := events.Decode(delivery.Data)
	if err != nil {
		// Malformed data cannot succeed on retry.
		d.deadLetter(ctx, delivery, "decode", err)
		return
	}
	if env.EventType != events.EventOrderCreated {
		// The buffer only captures creation events; anything else is
		// acknowledged and dropped.
		d.logger.WarnContext(ctx, "unexpected event type in email buffer", "event_type", env.EventType)
		d.ack(delivery)
		return
	}

	event, err := events.DecodeData(env.Data)
	if err != nil {
		d.deadLetter(ctx, delivery, "decode", err)
		return
	}

	seen, err := d.deduper.Seen(ctx, event.OrderID, string(env.EventType))
	if err != nil {
		d.logger.ErrorContext(ctx, "dedupe check failed", "order_id", event.OrderID, "error", err)
		d.nak(delivery)
		return
	}
	if seen {
		metrics.EmailsDeduplicated.Inc()
		d.logger.InfoContext(ctx, "duplicate delivery skipped", "order_id", event.OrderID)
		d.ack(delivery)
		return
	}

	subject := ConfirmationSubject(event.OrderID)
	body := ConfirmationBody(event.OrderID, event.Billing.TotalPrice)
	if err := d.mailer.Send(ctx, event.Email, subject, body); err != nil {
		metrics.EmailsFailed.Inc()
		if delivery.Attempts >= d.cfg.MaxAttempts {
			d.deadLetter(ctx, delivery, "send", err)
			return
		}
		d.logger.WarnContext(ctx, "email send failed, will retry",
			"order_id", event.OrderID,
			"attempt", delivery.Attempts,
			"error", err,
		)
		d.nak(delivery)
		return
	}

	// A crash between Send and Mark leaves a narrow duplicate window;
	// acceptable for at-least-once delivery.
	if err := d.deduper.Mark(ctx, event.OrderID, string(env.EventType)); err != nil {
		d.logger.ErrorContext(ctx, "dedupe mark failed", "order_id", event.OrderID, "error", err)
	}

	metrics.EmailsSent.Inc()
	d.logger.InfoContext(ctx, "confirmation email sent",
		"order_id", event.OrderID,
		"email", event.Email,
	)
	d.ack(delivery)
}

func (d *Dispatcher) deadLetter(ctx context.Context, delivery *Delivery, reason string, cause error) {
	if err := d.dead.Write(ctx, delivery.Data, reason, cause, delivery.Attempts); err != nil {
		// Keep the message in the buffer rather than lose it.
		d.logger.ErrorContext(ctx, "dead letter write failed", "reason", reason, "error", err)
		d.nak(delivery)
		return
	}
	d.logger.WarnContext(ctx, "message dead-lettered",
		"reason", reason,
		"attempts", delivery.Attempts,
		"cause", cause,
	)
	d.ack(delivery)
}

func (d *Dispatcher) ack(delivery *Delivery) {
	if err := delivery.Ack(); err != nil {
		d.logger.Error("ack failed", "error", err)
	}
}

func (d *Dispatcher) nak(delivery *Delivery) {
	if err := delivery.Nak(); err != nil {
		d.logger.Error("nak failed", "error", err)
	}
}
