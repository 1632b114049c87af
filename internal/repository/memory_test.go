package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdev-ltda/orderflow/internal/models"
)

func TestMemoryOrderRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()

	order := &models.Order{
		Email:    "customer@example.com",
		Products: []models.OrderProduct{{Code: "NOTEBOOK", Price: 100}},
		Billing:  models.BillingInfo{Payment: models.PaymentCash, TotalPrice: 100},
		Shipping: models.ShippingInfo{Type: models.ShippingEconomic, Carrier: models.CarrierCorreios},
	}

	created, err := repo.Create(ctx, order)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotZero(t, created.CreatedAt)

	got, err := repo.GetByEmailAndID(ctx, created.Email, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByEmailAndID(ctx, created.Email, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	deleted, err := repo.Delete(ctx, created.Email, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = repo.Delete(ctx, created.Email, created.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryProductRepositoryResolvesSubset(t *testing.T) {
	repo := NewMemoryProductRepository(
		&models.Product{ID: "p1", Code: "NOTEBOOK", Price: 100},
		&models.Product{ID: "p2", Code: "MOUSE", Price: 50},
	)

	products, err := repo.GetProductsByIDs(context.Background(), []string{"p1", "ghost", "p2"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "NOTEBOOK", products[0].Code)
	assert.Equal(t, "MOUSE", products[1].Code)
}
