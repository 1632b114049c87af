// Package fanout subscribes the broadcast consumer groups to the order
// event subjects.
//
// Each group gets its own queue subscription, so a failure in one group
// never affects delivery to the others. Filtering happens broker-side: a
// group only subscribes to the subjects it cares about.
package fanout

import (
	"context"
	"fmt"

	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/messaging"
	"github.com/gdev-ltda/orderflow/internal/metrics"
)

// Group is one consumer group: a named handler bound to a subject filter.
type Group struct {
	// Name identifies the group in logs and metrics.
	Name string

	// Subject is the subscription filter (may contain wildcards).
	Subject string

	// Queue is the queue group name so horizontally scaled replicas share
	// the subscription.
	Queue string

	// Handler processes one delivered message.
	Handler messaging.MessageHandler
}

// Router owns the live subscriptions of all registered groups.
type Router struct {
	bus    messaging.Subscriber
	logger *logging.Logger
	subs   []messaging.Subscription
}

// NewRouter creates a router on the given bus.
func NewRouter(bus messaging.Subscriber, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{bus: bus, logger: logger}
}

// Register subscribes the groups. Handler errors are logged and counted per
// group but never propagate; a poisoned message must not wedge a
// subscription.
func (r *Router) Register(groups ...Group) error {
	for _, g := range groups {
		g := g
		sub, err := r.bus.QueueSubscribe(g.Subject, g.Queue, r.instrument(g))
		if err != nil {
			return fmt.Errorf("subscribe group %s to %s: %w", g.Name, g.Subject, err)
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("consumer group registered",
			"group", g.Name,
			"subject", g.Subject,
			"queue", g.Queue,
		)
	}
	return nil
}

func (r *Router) instrument(g Group) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		if err := g.Handler(ctx, msg); err != nil {
			metrics.FanoutFailures.WithLabelValues(g.Name).Inc()
			r.logger.ErrorContext(ctx, "consumer group handler failed",
				"group", g.Name,
				"subject", msg.Subject,
				"error", err,
			)
			return err
		}
		metrics.FanoutDeliveries.WithLabelValues(g.Name).Inc()
		return nil
	}
}

// Close unsubscribes all registered groups.
func (r *Router) Close() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Warn("unsubscribe failed", "subject", sub.Subject(), "error", err)
		}
	}
	r.subs = nil
}
