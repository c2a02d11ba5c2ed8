package cart

import (
	"context"
	"errors"
	"testing"

	"shopfront/internal/domain"
	"shopfront/internal/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *memstore.Store
	svc   *Service
	user  domain.User
	mug   domain.Item
	lamp  domain.Item
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	return fixture{
		store: store,
		svc:   New(store.Carts(), store.Items(), store, nil),
		user:  store.AddUser(domain.User{Email: "ann@example.com", Country: "Estonia", City: "Tartu"}),
		mug:   store.AddItem(domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00"), StockQuantity: 5}),
		lamp:  store.AddItem(domain.Item{Name: "Lamp", Price: decimal.RequireFromString("5.00"), StockQuantity: 5}),
	}
}

func TestGetCreatesEmptyCart(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.True(t, c.Empty())

	again, err := f.svc.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, again.ID)
}

func TestGetUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), 999)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestAddItemMergesQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 1)
	require.NoError(t, err)
	c, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 3)
	require.NoError(t, err)

	line, ok := c.Line(f.mug.ID)
	require.True(t, ok)
	require.Equal(t, 4, line.Quantity)
	require.Len(t, c.Lines, 1)
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.svc.AddItem(ctx, f.user.ID, 999, 1)
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateItem(ctx, f.user.ID, f.mug.ID, 2)
	require.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 1)
	require.NoError(t, err)
	c, err := f.svc.UpdateItem(ctx, f.user.ID, f.mug.ID, 5)
	require.NoError(t, err)
	line, _ := c.Line(f.mug.ID)
	require.Equal(t, 5, line.Quantity)

	_, err = f.svc.UpdateItem(ctx, f.user.ID, f.mug.ID, -1)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c, err := f.svc.RemoveItem(ctx, f.user.ID, f.mug.ID)
		require.NoError(t, err)
		require.True(t, c.Empty())
	}
}

func TestClearKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, f.user.ID))
	require.NoError(t, f.svc.Clear(ctx, f.user.ID))

	after, err := f.svc.Get(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.True(t, after.Empty())
}

func TestTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 2)
	require.NoError(t, err)

	total, err := f.svc.Total(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("20.00")), total.String())
}

func TestTotalSkipsLinesWithoutPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.user.ID, f.mug.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 1)
	require.NoError(t, err)
	f.store.DeleteItem(f.lamp.ID)

	total, err := f.svc.Total(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("10.00")), total.String())
}
