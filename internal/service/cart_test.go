package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
)

func newCartService(t *testing.T) (*Service, *repository.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	records := repository.NewRecords(store)
	require.NoError(t, records.SaveProduct(ctx, model.Product{
		ID: "watch", Name: "Smart Fitness Watch", Price: decimal.RequireFromString("199.99"), Stock: 30,
	}))
	require.NoError(t, records.SaveProduct(ctx, model.Product{
		ID: "mat", Name: "Yoga Mat", Price: decimal.RequireFromString("25.50"),
	}))

	return newTestService(t, store, Options{MaxJoinQuantity: 100}), store
}

func TestGetCart_EmptyIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	svc, store := newCartService(t)

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())
	assert.Nil(t, cart.UpdatedAt)

	entries, err := store.ScanPrefix(ctx, "cart:")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplaceCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCartService(t)

	cart, err := svc.ReplaceCart(ctx, "alice", []model.CartItem{
		{ProductID: "watch", Quantity: 2},
		{ProductID: "mat", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Smart Fitness Watch", cart.Items[0].Name)
	assert.Equal(t, "399.98", cart.Items[0].LineTotal.String())
	assert.Equal(t, "476.48", cart.Total.String())
	require.NotNil(t, cart.UpdatedAt)

	got, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, cart.Total.String(), got.Total.String())
	assert.Len(t, got.Items, 2)

	other, err := svc.GetCart(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other.Items)

	cleared, err := svc.ReplaceCart(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
	assert.True(t, cleared.Total.IsZero())
}

func TestReplaceCart_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store := newCartService(t)

	tests := []struct {
		name  string
		items []model.CartItem
	}{
		{name: "zero quantity", items: []model.CartItem{{ProductID: "watch", Quantity: 0}}},
		{name: "above limit", items: []model.CartItem{{ProductID: "mat", Quantity: 101}}},
		{name: "above stock", items: []model.CartItem{{ProductID: "watch", Quantity: 31}}},
		{name: "unknown product", items: []model.CartItem{{ProductID: "ghost", Quantity: 1}}},
		{name: "malformed product id", items: []model.CartItem{{ProductID: "a:b", Quantity: 1}}},
		{name: "duplicate product", items: []model.CartItem{{ProductID: "mat", Quantity: 1}, {ProductID: "mat", Quantity: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReplaceCart(ctx, "alice", tt.items)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	entries, err := store.ScanPrefix(ctx, "cart:")
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected carts must not be written")
}

func TestGetCart_DeletedProductKeepsLine(t *testing.T) {
	ctx := context.Background()
	svc, store := newCartService(t)

	_, err := svc.ReplaceCart(ctx, "alice", []model.CartItem{
		{ProductID: "watch", Quantity: 1},
		{ProductID: "mat", Quantity: 2},
	})
	require.NoError(t, err)
	require.NoError(t, repository.NewRecords(store).DeleteProduct(ctx, "mat"))

	cart, err := svc.GetCart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Nil(t, cart.Items[1].UnitPrice)
	assert.Equal(t, "mat", cart.Items[1].Name)
	assert.Equal(t, "199.99", cart.Total.String())
}

func TestCart_StoreFailureIsUnavailable(t *testing.T) {
	svc := newTestService(t, failingStore{repository.NewMemoryStore()}, Options{})

	_, err := svc.GetCart(context.Background(), "alice")
	require.ErrorIs(t, err, ErrUnavailable)
}
