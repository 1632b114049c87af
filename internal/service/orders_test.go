package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdev-ltda/orderflow/internal/dispatcher"
	"github.com/gdev-ltda/orderflow/internal/dlq"
	"github.com/gdev-ltda/orderflow/internal/eventlog"
	"github.com/gdev-ltda/orderflow/internal/events"
	"github.com/gdev-ltda/orderflow/internal/fanout"
	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/messaging"
	"github.com/gdev-ltda/orderflow/internal/messaging/membus"
	"github.com/gdev-ltda/orderflow/internal/models"
	"github.com/gdev-ltda/orderflow/internal/repository"
)

type capturingMailer struct {
	mu   sync.Mutex
	sent []string // "to|subject|body"
}

func (m *capturingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject+"|"+body)
	return nil
}

func (m *capturingMailer) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// pipeline assembles the full event path on in-memory infrastructure: the
// bus fans out to the event log and billing groups, creation events are
// bridged into the email buffer, and the dispatcher drains it.
type pipeline struct {
	svc    *OrderService
	store  *eventlog.Store
	mailer *capturingMailer
	buffer *dispatcher.MemoryBuffer
	dead   *dlq.MemoryQueue
	disp   *dispatcher.Dispatcher
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus := membus.New()
	t.Cleanup(func() { bus.Close() })

	logger := logging.Default()
	store := eventlog.NewStore(client, "eventlog", 5*time.Minute)

	router := fanout.NewRouter(bus, logger)
	require.NoError(t, router.Register(
		fanout.EventLogGroup(store, logger),
		fanout.BillingGroup(logger),
	))
	t.Cleanup(router.Close)

	buffer := dispatcher.NewMemoryBuffer()
	_, err := bus.QueueSubscribe(messaging.SubjectOrdersCreated, "order-emails-buffer",
		func(_ context.Context, msg *messaging.Message) error {
			buffer.Push(msg.Data)
			return nil
		})
	require.NoError(t, err)

	mailer := &capturingMailer{}
	dead := dlq.NewMemoryQueue()
	disp := dispatcher.New(
		buffer,
		dispatcher.NewDeduper(client, "email-sent", time.Hour),
		mailer,
		dead,
		logger,
		dispatcher.Config{BatchSize: 5, BatchWait: 50 * time.Millisecond, MaxAttempts: 3},
	)

	products := repository.NewMemoryProductRepository(
		&models.Product{ID: "p1", Code: "NOTEBOOK", Price: 100},
		&models.Product{ID: "p2", Code: "MOUSE", Price: 50},
	)
	orders := repository.NewMemoryOrderRepository()
	svc := NewOrderService(orders, products, events.NewPublisher(bus), logger)

	return &pipeline{svc: svc, store: store, mailer: mailer, buffer: buffer, dead: dead, disp: disp}
}

func (p *pipeline) drainEmails(t *testing.T, expected int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.disp.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return len(p.mailer.Sent()) >= expected && p.buffer.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func validRequest() *models.OrderRequest {
	return &models.OrderRequest{
		Email:      "customer@example.com",
		ProductIDs: []string{"p1", "p2"},
		Payment:    models.PaymentCreditCard,
		Shipping: models.ShippingInfo{
			Type:    models.ShippingUrgent,
			Carrier: models.CarrierFedex,
		},
	}
}

func TestCreateOrderFlowsThroughPipeline(t *testing.T) {
	p := newPipeline(t)

	order, err := p.svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.NotZero(t, order.CreatedAt)
	assert.Equal(t, 150.0, order.Billing.TotalPrice)
	assert.Equal(t, []string{"NOTEBOOK", "MOUSE"}, order.ProductCodes())

	records, err := p.store.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ORDER_CREATED", records[0].EventType)
	assert.Equal(t, "#order_"+order.ID, records[0].PK)

	p.drainEmails(t, 1)
	sent := p.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t,
		"customer@example.com|Order "+order.ID+" Confirmation|Your order with id "+order.ID+" with value 150",
		sent[0])
	assert.Zero(t, p.dead.Len())
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	p := newPipeline(t)

	req := validRequest()
	req.ProductIDs = []string{"p1", "ghost"}

	_, err := p.svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)

	orders, err := p.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, p.buffer.Len())
}

func TestDeleteOrderPublishesDeletionOnly(t *testing.T) {
	p := newPipeline(t)

	order, err := p.svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	p.drainEmails(t, 1)

	deleted, err := p.svc.Delete(context.Background(), order.Email, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, deleted.ID)
	assert.Equal(t, order.Billing.TotalPrice, deleted.Billing.TotalPrice)

	_, err = p.svc.Get(context.Background(), order.Email, order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	records, err := p.store.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The deletion event never reaches the email buffer.
	assert.Zero(t, p.buffer.Len())
	assert.Len(t, p.mailer.Sent(), 1)
}

func TestDeleteMissingOrder(t *testing.T) {
	p := newPipeline(t)

	_, err := p.svc.Delete(context.Background(), "nobody@example.com", "missing")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	// No envelope was published, so nothing reached the log or the buffer.
	records, err := p.store.ListByOrder(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, p.buffer.Len())
}

func TestListByEmailScopesToCustomer(t *testing.T) {
	p := newPipeline(t)

	_, err := p.svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	other := validRequest()
	other.Email = "other@example.com"
	_, err = p.svc.Create(context.Background(), other)
	require.NoError(t, err)

	mine, err := p.svc.ListByEmail(context.Background(), "customer@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "customer@example.com", mine[0].Email)

	all, err := p.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPublishFailureDoesNotRollBackMutation(t *testing.T) {
	bus := membus.New()
	require.NoError(t, bus.Close()) // every publish will fail

	products := repository.NewMemoryProductRepository(
		&models.Product{ID: "p1", Code: "NOTEBOOK", Price: 100},
	)
	orders := repository.NewMemoryOrderRepository()
	svc := NewOrderService(orders, products, events.NewPublisher(bus), logging.Default())

	req := validRequest()
	req.ProductIDs = []string{"p1"}

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), order.Email, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}
