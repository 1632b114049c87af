// Package metrics exposes Prometheus counters for the event pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Publisher metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_events_published_total",
			Help: "Total number of order event envelopes published",
		},
		[]string{"event_type"},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_publish_failures_total",
			Help: "Total number of failed envelope publishes",
		},
	)

	// Fan-out metrics
	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_fanout_deliveries_total",
			Help: "Total messages handled per consumer group",
		},
		[]string{"group"},
	)

	FanoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_fanout_failures_total",
			Help: "Total handler failures per consumer group",
		},
		[]string{"group"},
	)

	// Event log metrics
	EventLogRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_eventlog_records_total",
			Help: "Total event log records appended",
		},
	)

	// Email dispatcher metrics
	EmailsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_emails_sent_total",
			Help: "Total confirmation emails sent",
		},
	)

	EmailsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_emails_failed_total",
			Help: "Total email send attempts that failed",
		},
	)

	EmailsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_emails_deduplicated_total",
			Help: "Total redelivered messages suppressed by the dedupe key",
		},
	)

	DeadLettersWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_dead_letters_written_total",
			Help: "Total messages moved to the dead-letter buffer",
		},
	)
)
