package fanout

import (
	"context"
	"time"

	"github.com/gdev-ltda/orderflow/internal/eventlog"
	"github.com/gdev-ltda/orderflow/internal/events"
	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/messaging"
	"github.com/gdev-ltda/orderflow/internal/metrics"
)

// EventLogGroup records every order event, created and deleted alike, in
// the expiring event log.
func EventLogGroup(store *eventlog.Store, logger *logging.Logger) Group {
	return Group{
		Name:    "eventlog",
		Subject: messaging.SubjectOrdersAll,
		Queue:   messaging.QueueEventLog,
		Handler: func(ctx context.Context, msg *messaging.Message) error {
			env, err := events.Decode(msg.Data)
			if err != nil {
				return err
			}
			event, err := events.DecodeData(env.Data)
			if err != nil {
				return err
			}

			rec := eventlog.NewRecord(env, event, msg.Metadata[messaging.HeaderMessageID], time.Now(), store.TTL())
			if err := store.Put(ctx, rec); err != nil {
				return err
			}

			metrics.EventLogRecords.Inc()
			logger.InfoContext(ctx, "event logged",
				"order_id", event.OrderID,
				"event_type", env.EventType,
				"pk", rec.PK,
				"sk", rec.SK,
			)
			return nil
		},
	}
}

// BillingGroup receives creation events only. Charging is handled by an
// external system; this group acknowledges receipt by logging the message
// for reconciliation.
func BillingGroup(logger *logging.Logger) Group {
	return Group{
		Name:    "billing",
		Subject: messaging.SubjectOrdersCreated,
		Queue:   messaging.QueueBilling,
		Handler: func(ctx context.Context, msg *messaging.Message) error {
			env, err := events.Decode(msg.Data)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "billing event received",
				"message_id", msg.Metadata[messaging.HeaderMessageID],
				"event_type", env.EventType,
				"payload", env.Data,
			)
			return nil
		},
	}
}
