package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdev-ltda/orderflow/internal/dlq"
	"github.com/gdev-ltda/orderflow/internal/events"
	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/models"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func newTestDispatcher(t *testing.T, mailer Mailer, cfg Config) (*Dispatcher, *MemoryBuffer, *dlq.MemoryQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	buffer := NewMemoryBuffer()
	dead := dlq.NewMemoryQueue()
	deduper := NewDeduper(client, "email-sent", time.Hour)
	return New(buffer, deduper, mailer, dead, logging.Default(), cfg), buffer, dead
}

func encodedEvent(t *testing.T, orderID string, totalPrice float64) []byte {
	t.Helper()
	order := &models.Order{
		Email:    "customer@example.com",
		ID:       orderID,
		Products: []models.OrderProduct{{Code: "NOTEBOOK", Price: totalPrice}},
		Billing:  models.BillingInfo{Payment: models.PaymentCash, TotalPrice: totalPrice},
		Shipping: models.ShippingInfo{Type: models.ShippingEconomic, Carrier: models.CarrierCorreios},
	}
	env, err := events.Encode(events.EventOrderCreated, order, "req-1")
	require.NoError(t, err)
	data, err := env.Marshal()
	require.NoError(t, err)
	return data
}

func fetchOne(t *testing.T, buffer *MemoryBuffer) *Delivery {
	t.Helper()
	deliveries, err := buffer.Fetch(context.Background(), 1, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	return deliveries[0]
}

func TestProcessSendsConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{MaxAttempts: 3})

	buffer.Push(encodedEvent(t, "order-1", 150))
	disp.process(context.Background(), fetchOne(t, buffer))

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "customer@example.com", sent[0].To)
	assert.Equal(t, "Order order-1 Confirmation", sent[0].Subject)
	assert.Equal(t, "Your order with id order-1 with value 150", sent[0].Body)
	assert.Zero(t, dead.Len())
	assert.Zero(t, buffer.Len())
}

func TestProcessSkipsDuplicateDelivery(t *testing.T) {
	mailer := &fakeMailer{}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{MaxAttempts: 3})

	payload := encodedEvent(t, "order-1", 150)
	buffer.Push(payload)
	disp.process(context.Background(), fetchOne(t, buffer))

	buffer.Push(payload)
	disp.process(context.Background(), fetchOne(t, buffer))

	assert.Len(t, mailer.Sent(), 1)
	assert.Zero(t, dead.Len())
}

func TestProcessRetriesBeforeBudgetExhausted(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{MaxAttempts: 3})

	buffer.Push(encodedEvent(t, "order-1", 150))

	// Attempts 1 and 2 nak back into the buffer, attempt 3 dead-letters.
	for attempt := 1; attempt <= 2; attempt++ {
		delivery := fetchOne(t, buffer)
		assert.Equal(t, attempt, delivery.Attempts)
		disp.process(context.Background(), delivery)
		assert.Equal(t, 1, buffer.Len())
		assert.Zero(t, dead.Len())
	}

	delivery := fetchOne(t, buffer)
	assert.Equal(t, 3, delivery.Attempts)
	disp.process(context.Background(), delivery)

	assert.Zero(t, buffer.Len())
	require.Equal(t, 1, dead.Len())
	failed := dead.Messages()[0]
	assert.Equal(t, "send", failed.Reason)
	assert.Equal(t, 3, failed.Attempts)
	assert.Contains(t, failed.Cause, "smtp down")
}

func TestProcessRecoversOnRetry(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{MaxAttempts: 3})

	buffer.Push(encodedEvent(t, "order-1", 150))
	disp.process(context.Background(), fetchOne(t, buffer))
	require.Equal(t, 1, buffer.Len())

	mailer.mu.Lock()
	mailer.err = nil
	mailer.mu.Unlock()

	disp.process(context.Background(), fetchOne(t, buffer))
	assert.Len(t, mailer.Sent(), 1)
	assert.Zero(t, dead.Len())
	assert.Zero(t, buffer.Len())
}

func TestProcessDeadLettersPoisonMessage(t *testing.T) {
	mailer := &fakeMailer{}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{MaxAttempts: 3})

	buffer.Push([]byte("not an envelope"))
	disp.process(context.Background(), fetchOne(t, buffer))

	assert.Empty(t, mailer.Sent())
	assert.Zero(t, buffer.Len())
	require.Equal(t, 1, dead.Len())
	failed := dead.Messages()[0]
	assert.Equal(t, "decode", failed.Reason)
	assert.Equal(t, []byte("not an envelope"), failed.Payload)
}

func TestProcessDropsUnexpectedEventType(t *testing.T) {
	mailer := &fakeMailer{}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{MaxAttempts: 3})

	env := &events.Envelope{EventType: events.EventOrderDeleted, Data: "{}"}
	data, err := env.Marshal()
	require.NoError(t, err)

	buffer.Push(data)
	disp.process(context.Background(), fetchOne(t, buffer))

	assert.Empty(t, mailer.Sent())
	assert.Zero(t, buffer.Len())
	assert.Zero(t, dead.Len())
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	mailer := &fakeMailer{}
	disp, buffer, dead := newTestDispatcher(t, mailer, Config{BatchSize: 5, MaxAttempts: 3})

	buffer.Push([]byte("poison"))
	buffer.Push(encodedEvent(t, "order-1", 150))
	buffer.Push(encodedEvent(t, "order-2", 99.9))

	deliveries, err := buffer.Fetch(context.Background(), 5, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)

	disp.processBatch(context.Background(), deliveries)

	assert.Len(t, mailer.Sent(), 2)
	assert.Equal(t, 1, dead.Len())
	assert.Zero(t, buffer.Len())
}

func TestConfirmationBodyFormatsTotal(t *testing.T) {
	assert.Equal(t, "Your order with id o1 with value 150", ConfirmationBody("o1", 150))
	assert.Equal(t, "Your order with id o1 with value 99.9", ConfirmationBody("o1", 99.9))
	assert.Equal(t, "Your order with id o1 with value 0.5", ConfirmationBody("o1", 0.5))
}

func TestRunDrainsBuffer(t *testing.T) {
	mailer := &fakeMailer{}
	disp, buffer, _ := newTestDispatcher(t, mailer, Config{
		BatchSize:   5,
		BatchWait:   50 * time.Millisecond,
		MaxAttempts: 3,
	})

	buffer.Push(encodedEvent(t, "order-1", 150))
	buffer.Push(encodedEvent(t, "order-2", 200))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = disp.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(mailer.Sent()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
