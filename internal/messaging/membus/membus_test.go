package membus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdev-ltda/orderflow/internal/messaging"
)

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"orders.events.created", "orders.events.created", true},
		{"orders.events.created", "orders.events.deleted", false},
		{"orders.events.*", "orders.events.created", true},
		{"orders.events.*", "orders.events.created.extra", false},
		{"orders.events.>", "orders.events.created", true},
		{"orders.events.>", "orders.events.created.extra", true},
		{"orders.events.>", "orders.events", false},
		{"orders.*.created", "orders.events.created", true},
		{">", "anything.at.all", true},
		{"orders", "orders", true},
		{"orders", "orders.events", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchSubject(tt.pattern, tt.subject))
		})
	}
}

func TestPublishFanOut(t *testing.T) {
	bus := New()
	defer bus.Close()

	var a, b int
	_, err := bus.Subscribe("orders.events.>", func(context.Context, *messaging.Message) error {
		a++
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("orders.events.created", func(context.Context, *messaging.Message) error {
		b++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "orders.events.created", []byte("x")))
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	require.NoError(t, bus.Publish(context.Background(), "orders.events.deleted", []byte("x")))
	assert.Equal(t, 2, a)
	assert.Equal(t, 1, b)
}

func TestQueueGroupDeliversOnce(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int
	for i := 0; i < 3; i++ {
		_, err := bus.QueueSubscribe("orders.events.created", "workers", func(context.Context, *messaging.Message) error {
			count++
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish(context.Background(), "orders.events.created", []byte("x")))
	assert.Equal(t, 1, count)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int
	sub, err := bus.Subscribe("orders.events.created", func(context.Context, *messaging.Message) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "orders.events.created", []byte("x")))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish(context.Background(), "orders.events.created", []byte("x")))

	assert.Equal(t, 1, count)
	assert.False(t, sub.IsValid())
}

func TestClosedBusRejectsPublish(t *testing.T) {
	bus := New()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), "orders.events.created", []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, bus.IsConnected())
}

func TestMessageIsolation(t *testing.T) {
	bus := New()
	defer bus.Close()

	var got *messaging.Message
	_, err := bus.Subscribe("s", func(_ context.Context, msg *messaging.Message) error {
		got = msg
		return nil
	})
	require.NoError(t, err)

	original := &messaging.Message{
		Subject:  "s",
		Data:     []byte("payload"),
		Metadata: map[string]string{"k": "v"},
	}
	require.NoError(t, bus.PublishMsg(context.Background(), original))

	// Mutating the published message must not affect the delivered copy.
	original.Data[0] = 'X'
	original.Metadata["k"] = "changed"

	assert.Equal(t, "payload", string(got.Data))
	assert.Equal(t, "v", got.Metadata["k"])
	assert.False(t, got.Timestamp.IsZero())
}
