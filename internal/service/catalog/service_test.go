package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shopfront/internal/domain"
	"shopfront/internal/memstore"
	"shopfront/internal/service/inventory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// mapCache stores JSON like the redis cache does.
type mapCache struct {
	data    map[string][]byte
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string, dst any) (bool, error) {
	if c.failGet {
		return false, errors.New("cache down")
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *mapCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) Incr(_ context.Context, key string) (int64, error) {
	var n int64
	if raw, ok := c.data[key]; ok {
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, err
		}
	}
	n++
	raw, err := json.Marshal(n)
	if err != nil {
		return 0, err
	}
	c.data[key] = raw
	return n, nil
}

func TestGetReadsThroughCache(t *testing.T) {
	store := memstore.New()
	mug := store.AddItem(domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00"), StockQuantity: 3})
	c := newMapCache()
	svc := New(store.Items(), c, nil)
	ctx := context.Background()

	got, err := svc.Get(ctx, mug.ID)
	require.NoError(t, err)
	require.Equal(t, "Mug", got.Name)
	require.Contains(t, c.data, scopedKey(0, itemKey(mug.ID)))

	store.DeleteItem(mug.ID)
	cached, err := svc.Get(ctx, mug.ID)
	require.NoError(t, err)
	require.True(t, cached.Price.Equal(mug.Price))
}

func TestGetUnknownItem(t *testing.T) {
	svc := New(memstore.New().Items(), nil, nil)
	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	store := memstore.New()
	store.AddItem(domain.Item{Name: "Coffee Mug", Price: decimal.RequireFromString("10.00")})
	store.AddItem(domain.Item{Name: "Desk Lamp", Price: decimal.RequireFromString("25.00")})
	svc := New(store.Items(), newMapCache(), nil)
	ctx := context.Background()

	items, err := svc.Search(ctx, "  MUG ")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Coffee Mug", items[0].Name)

	all, err := svc.Search(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	store := memstore.New()
	c := newMapCache()
	svc := New(store.Items(), c, nil)
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	require.Contains(t, c.data, scopedKey(0, listKey))

	created, err := svc.Upsert(ctx, domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00"), StockQuantity: 1})
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, created.ID, items[0].ID)
	require.Contains(t, c.data, scopedKey(1, listKey))
}

func TestUpsertRefreshesCachedSearch(t *testing.T) {
	store := memstore.New()
	svc := New(store.Items(), newMapCache(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00"), StockQuantity: 1})
	require.NoError(t, err)
	found, err := svc.Search(ctx, "mug")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.True(t, found[0].Price.Equal(decimal.RequireFromString("10.00")))

	_, err = svc.Upsert(ctx, domain.Item{Name: "Mug", Price: decimal.RequireFromString("25.00")})
	require.NoError(t, err)
	found, err = svc.Search(ctx, "mug")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.True(t, found[0].Price.Equal(decimal.RequireFromString("25.00")), "search served %s", found[0].Price)
}

func TestUpsertKeepsLedgerStock(t *testing.T) {
	store := memstore.New()
	svc := New(store.Items(), newMapCache(), nil)
	ledger := inventory.New(store.Items(), store, svc, nil, nil)
	ctx := context.Background()

	mug, err := svc.Upsert(ctx, domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00"), StockQuantity: 3})
	require.NoError(t, err)
	ok, err := ledger.Decrease(ctx, mug.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := svc.Upsert(ctx, domain.Item{Name: "Mug", Price: decimal.RequireFromString("12.00"), StockQuantity: 3})
	require.NoError(t, err)
	require.Equal(t, mug.ID, again.ID)
	require.Zero(t, again.StockQuantity)
	require.True(t, again.Price.Equal(decimal.RequireFromString("12.00")))
	require.Zero(t, store.Stock(mug.ID))
}

func TestStockMovesRefreshCachedViews(t *testing.T) {
	store := memstore.New()
	mug := store.AddItem(domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00"), StockQuantity: 5})
	svc := New(store.Items(), newMapCache(), nil)
	ledger := inventory.New(store.Items(), store, svc, nil, nil)
	ctx := context.Background()

	got, err := svc.Get(ctx, mug.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.StockQuantity)
	listed, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, listed[0].StockQuantity)

	ok, err := ledger.Decrease(ctx, mug.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = svc.Get(ctx, mug.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.StockQuantity)
	listed, err = svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, listed[0].StockQuantity)

	require.NoError(t, ledger.Increase(ctx, mug.ID, 4))
	found, err := svc.Search(ctx, "mug")
	require.NoError(t, err)
	require.Equal(t, 7, found[0].StockQuantity)
}

func TestUpsertValidation(t *testing.T) {
	svc := New(memstore.New().Items(), nil, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.Item{Name: " "})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.Upsert(ctx, domain.Item{Name: "x", Price: decimal.RequireFromString("-1")})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.Upsert(ctx, domain.Item{Name: "x", StockQuantity: -1})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCacheFailureFallsBackToRepository(t *testing.T) {
	store := memstore.New()
	store.AddItem(domain.Item{Name: "Mug", Price: decimal.RequireFromString("10.00")})
	c := newMapCache()
	c.failGet = true
	svc := New(store.Items(), c, nil)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
}
