package repository

import (
	"context"
	"testing"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockOf(t *testing.T, store *Store, id int64) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestReserveStock(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	firewall, pentest := stockOf(t, store, 1), stockOf(t, store, 4)

	err := store.ReserveStock(ctx, []domain.StockItem{{ProductID: 1, Quantity: 2}, {ProductID: 4, Quantity: pentest}})
	require.NoError(t, err)
	assert.Equal(t, firewall-2, stockOf(t, store, 1))
	assert.Equal(t, 0, stockOf(t, store, 4))

	require.NoError(t, store.ReleaseStock(ctx, []domain.StockItem{{ProductID: 1, Quantity: 2}, {ProductID: 4, Quantity: pentest}}))
	assert.Equal(t, firewall, stockOf(t, store, 1))
	assert.Equal(t, pentest, stockOf(t, store, 4))
}

func TestReserveStock_InsufficientReservesNothing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	firewall, pentest := stockOf(t, store, 1), stockOf(t, store, 4)

	err := store.ReserveStock(ctx, []domain.StockItem{{ProductID: 1, Quantity: 1}, {ProductID: 4, Quantity: pentest + 50}})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.ErrorContains(t, err, "product 4")
	assert.Equal(t, firewall, stockOf(t, store, 1), "earlier items must be rolled back")
	assert.Equal(t, pentest, stockOf(t, store, 4))
}

func TestReserveStock_UnknownProduct(t *testing.T) {
	store := setupTestStore(t)

	err := store.ReserveStock(context.Background(), []domain.StockItem{{ProductID: 999, Quantity: 1}})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestReserveStock_Postgres(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	pentest := stockOf(t, store, 4)
	require.ErrorIs(t, store.ReserveStock(ctx, []domain.StockItem{{ProductID: 4, Quantity: pentest + 1}}), ErrInsufficientStock)
	require.NoError(t, store.ReserveStock(ctx, []domain.StockItem{{ProductID: 4, Quantity: pentest}}))
	assert.Equal(t, 0, stockOf(t, store, 4))
}
