package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gdev-ltda/orderflow/internal/models"
)

// MemoryOrderRepository is an in-memory OrderRepository for tests and local
// development.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]map[string]*models.Order // email -> id -> order
}

// NewMemoryOrderRepository creates an empty in-memory order store.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]map[string]*models.Order),
	}
}

func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = uuid.New().String()
	order.CreatedAt = time.Now().UnixMilli()

	if r.orders[order.Email] == nil {
		r.orders[order.Email] = make(map[string]*models.Order)
	}
	stored := *order
	r.orders[order.Email][order.ID] = &stored
	return order, nil
}

func (r *MemoryOrderRepository) GetByEmailAndID(_ context.Context, email, orderID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[email][orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *MemoryOrderRepository) ListByEmail(_ context.Context, email string) ([]*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Order
	for _, order := range r.orders[email] {
		copied := *order
		out = append(out, &copied)
	}
	sortOrders(out)
	return out, nil
}

func (r *MemoryOrderRepository) ListAll(_ context.Context) ([]*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Order
	for _, byID := range r.orders {
		for _, order := range byID {
			copied := *order
			out = append(out, &copied)
		}
	}
	sortOrders(out)
	return out, nil
}

func (r *MemoryOrderRepository) Delete(_ context.Context, email, orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[email][orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	delete(r.orders[email], orderID)
	copied := *order
	return &copied, nil
}

func (r *MemoryOrderRepository) Close() {}

func sortOrders(orders []*models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt > orders[j].CreatedAt
	})
}

// MemoryProductRepository is an in-memory ProductRepository seeded with a
// fixed catalog.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]*models.Product
}

// NewMemoryProductRepository creates a product store with the given catalog.
func NewMemoryProductRepository(products ...*models.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: make(map[string]*models.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// Add inserts or replaces a product.
func (r *MemoryProductRepository) Add(p *models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *MemoryProductRepository) GetProductsByIDs(_ context.Context, ids []string) ([]*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *MemoryProductRepository) Close() {}
