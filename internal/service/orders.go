// Package service implements the order use cases and ties mutations to
// event publication.
package service

import (
	"context"

	"github.com/gdev-ltda/orderflow/internal/events"
	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/middleware"
	"github.com/gdev-ltda/orderflow/internal/models"
	"github.com/gdev-ltda/orderflow/internal/repository"
)

// OrderService coordinates the order store, the product catalog, and the
// event pipeline.
type OrderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	publisher *events.Publisher
	logger    *logging.Logger
}

// NewOrderService wires the service dependencies.
func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, publisher *events.Publisher, logger *logging.Logger) *OrderService {
	if logger == nil {
		logger = logging.Default()
	}
	return &OrderService{
		orders:    orders,
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

// Create resolves the requested products, persists the order, and publishes
// the creation event. Every referenced product must resolve or the order is
// rejected with repository.ErrProductNotFound.
func (s *OrderService) Create(ctx context.Context, req *models.OrderRequest) (*models.Order, error) {
	products, err := s.products.GetProductsByIDs(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 || len(products) != len(req.ProductIDs) {
		return nil, repository.ErrProductNotFound
	}

	order := &models.Order{
		Email:    req.Email,
		Shipping: req.Shipping,
		Billing:  models.BillingInfo{Payment: req.Payment},
	}
	for _, p := range products {
		order.Products = append(order.Products, models.OrderProduct{Code: p.Code, Price: p.Price})
		order.Billing.TotalPrice += p.Price
	}

	order, err = s.orders.Create(ctx, order)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventOrderCreated, order)
	return order, nil
}

// Get fetches one order.
func (s *OrderService) Get(ctx context.Context, email, orderID string) (*models.Order, error) {
	return s.orders.GetByEmailAndID(ctx, email, orderID)
}

// ListByEmail returns all orders for a customer.
func (s *OrderService) ListByEmail(ctx context.Context, email string) ([]*models.Order, error) {
	return s.orders.ListByEmail(ctx, email)
}

// ListAll returns every order.
func (s *OrderService) ListAll(ctx context.Context) ([]*models.Order, error) {
	return s.orders.ListAll(ctx)
}

// Delete removes the order and publishes the deletion event built from the
// deleted snapshot.
func (s *OrderService) Delete(ctx context.Context, email, orderID string) (*models.Order, error) {
	order, err := s.orders.Delete(ctx, email, orderID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventOrderDeleted, order)
	return order, nil
}

// publishEvent announces a completed mutation. The mutation is already
// durable at this point, so a publish failure is logged as a partial
// failure instead of rolling the order back.
func (s *OrderService) publishEvent(ctx context.Context, eventType events.EventType, order *models.Order) {
	env, err := events.Encode(eventType, order, middleware.GetRequestID(ctx))
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event failed",
			"order_id", order.ID,
			"event_type", eventType,
			"error", err,
		)
		return
	}

	messageID, err := s.publisher.Publish(ctx, env)
	if err != nil {
		s.logger.ErrorContext(ctx, "publish event failed, order mutation already committed",
			"order_id", order.ID,
			"event_type", eventType,
			"error", err,
		)
		return
	}

	s.logger.InfoContext(ctx, "order event published",
		"order_id", order.ID,
		"event_type", eventType,
		"message_id", messageID,
	)
}
