package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdev-ltda/orderflow/internal/models"
)

const queryTimeout = 5 * time.Second

// PostgresRepository implements OrderRepository and ProductRepository on a
// shared pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by the given connection
// string and verifies connectivity.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Create assigns the order id and creation timestamp and inserts the row.
func (r *PostgresRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	order.ID = uuid.New().String()
	order.CreatedAt = time.Now().UnixMilli()

	products, err := json.Marshal(order.Products)
	if err != nil {
		return nil, fmt.Errorf("marshal products: %w", err)
	}
	billing, err := json.Marshal(order.Billing)
	if err != nil {
		return nil, fmt.Errorf("marshal billing: %w", err)
	}
	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (email, id, created_at, products, billing, shipping)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		order.Email, order.ID, order.CreatedAt, products, billing, shipping,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return order, nil
}

// GetByEmailAndID fetches a single order by its composite key.
func (r *PostgresRepository) GetByEmailAndID(ctx context.Context, email, orderID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT email, id, created_at, products, billing, shipping
		FROM orders
		WHERE email = $1 AND id = $2`,
		email, orderID,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

// ListByEmail returns every order belonging to a customer, newest first.
func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT email, id, created_at, products, billing, shipping
		FROM orders
		WHERE email = $1
		ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders by email: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// ListAll returns every order in the store, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT email, id, created_at, products, billing, shipping
		FROM orders
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// Delete removes the order and returns the deleted snapshot so callers can
// publish the deletion event from authoritative data.
func (r *PostgresRepository) Delete(ctx context.Context, email, orderID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		DELETE FROM orders
		WHERE email = $1 AND id = $2
		RETURNING email, id, created_at, products, billing, shipping`,
		email, orderID,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("delete order: %w", err)
	}
	return order, nil
}

// GetProductsByIDs resolves the subset of ids that exist.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []string) ([]*models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, code, price
		FROM products
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order    models.Order
		products []byte
		billing  []byte
		shipping []byte
	)
	if err := row.Scan(&order.Email, &order.ID, &order.CreatedAt, &products, &billing, &shipping); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(products, &order.Products); err != nil {
		return nil, fmt.Errorf("unmarshal products: %w", err)
	}
	if err := json.Unmarshal(billing, &order.Billing); err != nil {
		return nil, fmt.Errorf("unmarshal billing: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping: %w", err)
	}
	return &order, nil
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
