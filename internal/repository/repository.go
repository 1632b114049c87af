// Package repository provides persistence for orders and product lookups.
package repository

import (
	"context"
	"errors"

	"github.com/gdev-ltda/orderflow/internal/models"
)

var (
	// ErrOrderNotFound is returned when the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrProductNotFound is returned when one or more referenced products
	// do not resolve.
	ErrProductNotFound = errors.New("no valid products found for the order")
)

// OrderRepository is the authoritative store for order aggregates.
type OrderRepository interface {
	// Create assigns the order id and creation timestamp, persists the
	// order, and returns the stored aggregate.
	Create(ctx context.Context, order *models.Order) (*models.Order, error)

	// GetByEmailAndID fetches one order; ErrOrderNotFound if absent.
	GetByEmailAndID(ctx context.Context, email, orderID string) (*models.Order, error)

	// ListByEmail returns all orders for a customer.
	ListByEmail(ctx context.Context, email string) ([]*models.Order, error)

	// ListAll returns every order.
	ListAll(ctx context.Context) ([]*models.Order, error)

	// Delete removes the order and returns the deleted snapshot;
	// ErrOrderNotFound if absent.
	Delete(ctx context.Context, email, orderID string) (*models.Order, error)

	Close()
}

// ProductRepository resolves product ids referenced by an order request.
type ProductRepository interface {
	// GetProductsByIDs returns the products that exist among ids; callers
	// detect unresolved ids by comparing lengths.
	GetProductsByIDs(ctx context.Context, ids []string) ([]*models.Product, error)

	Close()
}
