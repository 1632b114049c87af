package messaging

// Subject constants for the order event bus.
// Subjects follow the pattern {domain}.{stream}.{event}; consumer-group
// filtering is expressed entirely through subject subscriptions, so a
// group that must not see deletions simply never subscribes to the
// deleted subject.
const (
	// SubjectOrdersCreated carries ORDER_CREATED envelopes.
	SubjectOrdersCreated = "orders.events.created"

	// SubjectOrdersDeleted carries ORDER_DELETED envelopes.
	SubjectOrdersDeleted = "orders.events.deleted"

	// SubjectOrdersAll matches every order event regardless of type.
	SubjectOrdersAll = "orders.events.>"

	// SubjectEmailsDLQPrefix prefixes dead-lettered email messages;
	// the failure reason is appended as the final token.
	SubjectEmailsDLQPrefix = "orders.emails.dlq"
)

// Queue group names for load-balanced consumer groups.
// Workers in the same queue group share messages (each message processed once
// per group).
const (
	QueueEventLog = "order-eventlog"
	QueueBilling  = "order-billing"
)
