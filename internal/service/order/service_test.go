package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shopfront/internal/domain"
	"shopfront/internal/events"
	"shopfront/internal/memstore"
	"shopfront/internal/service/inventory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	failures    []string
}

func (m *recordingMetrics) ObserveTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *recordingMetrics) ObserveCloseFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, reason)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fixture struct {
	store   *memstore.Store
	svc     *Service
	metrics *recordingMetrics
	catalog *countingInvalidator
	user    domain.User
	itemA   domain.Item
	itemB   domain.Item
}

func newFixture(t *testing.T, stockA, stockB int) fixture {
	t.Helper()
	store := memstore.New()
	metrics := &recordingMetrics{}
	catalog := &countingInvalidator{}
	ledger := inventory.New(store.Items(), store, nil, nil, nil)
	svc := New(Deps{
		Orders:  store.Orders(),
		Items:   store.Items(),
		Carts:   store.Carts(),
		Users:   store.Users(),
		Stock:   ledger,
		Outbox:  store.Outbox(),
		Tx:      store,
		Metrics: metrics,
		Catalog: catalog,
	}, nil)
	return fixture{
		store:   store,
		svc:     svc,
		metrics: metrics,
		catalog: catalog,
		user:    store.AddUser(domain.User{Email: "ann@example.com", Country: "Estonia", City: "Tartu"}),
		itemA:   store.AddItem(domain.Item{Name: "A", Price: decimal.RequireFromString("10.00"), StockQuantity: stockA}),
		itemB:   store.AddItem(domain.Item{Name: "B", Price: decimal.RequireFromString("5.00"), StockQuantity: stockB}),
	}
}

func (f fixture) fillCart(t *testing.T, userID int64, lines map[int64]int) {
	t.Helper()
	ctx := context.Background()
	c, err := f.store.Carts().GetOrCreate(ctx, userID)
	require.NoError(t, err)
	for itemID, qty := range lines {
		require.NoError(t, f.store.Carts().AddQuantity(ctx, c.ID, itemID, qty))
	}
}

func requireTotalMatchesLines(t *testing.T, o *domain.Order) {
	t.Helper()
	sum := decimal.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	require.True(t, sum.Equal(o.TotalPrice), "total %s, lines sum %s", o.TotalPrice, sum)
}

func TestAddItemToPendingOrderCreatesOnce(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	first, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, first.Status)
	require.Equal(t, "Estonia, Tartu", first.ShippingAddress)

	second, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemB.ID, 2)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Lines, 2)
	requireTotalMatchesLines(t, second)
	require.Equal(t, 1, f.store.OrderCount(f.user.ID))

	evts := f.store.Events()
	require.Len(t, evts, 1)
	require.Equal(t, events.TopicOrderCreated, evts[0].Topic)
}

func TestQuantityCap(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	_, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 3)
	require.ErrorIs(t, err, domain.ErrQuantityLimitExceeded)
	require.Zero(t, f.store.OrderCount(f.user.ID))

	_, err = f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 2, o.Lines[0].Quantity)

	_, err = f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.ErrorIs(t, err, domain.ErrQuantityLimitExceeded)

	stored, err := f.svc.GetPendingOrder(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Lines[0].Quantity)
}

func TestAddItemValidatesInput(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	_, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.svc.AddItemToPendingOrder(ctx, f.user.ID, 999, 1)
	require.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = f.svc.AddItemToPendingOrder(ctx, 999, f.itemA.ID, 1)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestFrozenPrice(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	f.store.SetPrice(f.itemA.ID, decimal.RequireFromString("99.00"))

	o, err = f.svc.UpdateLineQuantity(ctx, o.ID, o.Lines[0].ID, 2, f.user.ID)
	require.NoError(t, err)
	require.True(t, o.Lines[0].Price.Equal(decimal.RequireFromString("10.00")))
	require.True(t, o.TotalPrice.Equal(decimal.RequireFromString("20.00")))
}

func TestRemoveLastLineCancelsAndAddRevives(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)

	o, err = f.svc.RemoveLineFromOrder(ctx, o.ID, o.Lines[0].ID, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCanceled, o.Status)
	require.True(t, o.TotalPrice.IsZero())

	_, err = f.svc.GetPendingOrder(ctx, f.user.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	revived, err := f.svc.AddItemToOrder(ctx, o.ID, f.itemB.ID, 2, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, o.ID, revived.ID)
	require.Equal(t, domain.OrderStatusPending, revived.Status)
	requireTotalMatchesLines(t, revived)
	require.Equal(t, []string{"PENDING->CANCELED", "CANCELED->PENDING"}, f.metrics.transitions)
}

func TestReviveConflictsWithOtherPendingOrder(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.RemoveLineFromOrder(ctx, o.ID, o.Lines[0].ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemB.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.AddItemToOrder(ctx, o.ID, f.itemA.ID, 1, f.user.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	canceled, err := f.svc.GetOrder(ctx, o.ID, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCanceled, canceled.Status)
}

func TestLineMutationsCheckOwnershipAndLine(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()
	other := f.store.AddUser(domain.User{Email: "bob@example.com"})

	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.RemoveLineFromOrder(ctx, o.ID, o.Lines[0].ID, other.ID)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	_, err = f.svc.UpdateLineQuantity(ctx, o.ID, o.Lines[0].ID, 1, other.ID)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	_, err = f.svc.CloseOrder(ctx, o.ID, other.ID)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = f.svc.RemoveLineFromOrder(ctx, o.ID, 12345, f.user.ID)
	require.ErrorIs(t, err, domain.ErrLineNotFound)
	_, err = f.svc.RemoveLineFromOrder(ctx, 12345, o.Lines[0].ID, f.user.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestUpdateLineQuantity(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	_, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemB.ID, 1)
	require.NoError(t, err)
	lineA, lineB := o.Lines[0].ID, o.Lines[1].ID

	_, err = f.svc.UpdateLineQuantity(ctx, o.ID, lineA, 3, f.user.ID)
	require.ErrorIs(t, err, domain.ErrQuantityLimitExceeded)

	o, err = f.svc.UpdateLineQuantity(ctx, o.ID, lineA, 0, f.user.ID)
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	require.Equal(t, domain.OrderStatusPending, o.Status)
	requireTotalMatchesLines(t, o)

	o, err = f.svc.UpdateLineQuantity(ctx, o.ID, lineB, -1, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCanceled, o.Status)
}

func TestCreateOrderFromCart(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()
	f.fillCart(t, f.user.ID, map[int64]int{f.itemA.ID: 1, f.itemB.ID: 2})

	o, err := f.svc.CreateOrderFromCart(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, o.Status)
	require.Len(t, o.Lines, 2)
	require.True(t, o.TotalPrice.Equal(decimal.RequireFromString("20.00")), o.TotalPrice.String())
	require.Equal(t, "Estonia, Tartu", o.ShippingAddress)

	c, err := f.store.Carts().GetOrCreate(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
}

func TestCreateOrderFromEmptyCart(t *testing.T) {
	f := newFixture(t, 5, 5)

	_, err := f.svc.CreateOrderFromCart(context.Background(), f.user.ID)
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	require.Zero(t, f.store.OrderCount(f.user.ID))
	require.Empty(t, f.store.Events())
}

func TestCreateOrderFromCartRejectsOverCap(t *testing.T) {
	f := newFixture(t, 5, 5)
	f.fillCart(t, f.user.ID, map[int64]int{f.itemA.ID: 3})

	_, err := f.svc.CreateOrderFromCart(context.Background(), f.user.ID)
	require.ErrorIs(t, err, domain.ErrQuantityLimitExceeded)
	require.Zero(t, f.store.OrderCount(f.user.ID))
}

func TestCreateOrderFromCartRebuildsPendingOrder(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	pending, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 2)
	require.NoError(t, err)
	f.fillCart(t, f.user.ID, map[int64]int{f.itemB.ID: 1})

	o, err := f.svc.CreateOrderFromCart(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, pending.ID, o.ID)
	require.Len(t, o.Lines, 1)
	require.Equal(t, f.itemB.ID, o.Lines[0].ItemID)
	require.True(t, o.TotalPrice.Equal(decimal.RequireFromString("5.00")))
	require.Equal(t, 1, f.store.OrderCount(f.user.ID))
}

func TestCloseOrderCommitsStockAndClearsCart(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()
	f.fillCart(t, f.user.ID, map[int64]int{f.itemA.ID: 1, f.itemB.ID: 2})

	o, err := f.svc.CreateOrderFromCart(ctx, f.user.ID)
	require.NoError(t, err)

	closed, err := f.svc.CloseOrder(ctx, o.ID, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusClosed, closed.Status)
	require.Equal(t, 4, f.store.Stock(f.itemA.ID))
	require.Equal(t, 3, f.store.Stock(f.itemB.ID))

	c, err := f.store.Carts().GetOrCreate(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, c.Empty())

	history, err := f.svc.GetUserOrderHistory(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, o.ID, history[0].ID)

	evts := f.store.Events()
	require.Equal(t, events.TopicOrderClosed, evts[len(evts)-1].Topic)
	require.Equal(t, 1, f.catalog.count())
}

func TestCloseNonPendingOrderFails(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()

	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.CloseOrder(ctx, o.ID, f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.CloseOrder(ctx, o.ID, f.user.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyClosed)
	require.Equal(t, 4, f.store.Stock(f.itemA.ID))

	_, err = f.svc.AddItemToOrder(ctx, o.ID, f.itemB.ID, 1, f.user.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyClosed)

	canceled, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemB.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.RemoveLineFromOrder(ctx, canceled.ID, canceled.Lines[0].ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseOrder(ctx, canceled.ID, f.user.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyClosed)
	require.Equal(t, 5, f.store.Stock(f.itemB.ID))
}

func TestCloseIsAtomicAcrossLines(t *testing.T) {
	f := newFixture(t, 5, 0)
	ctx := context.Background()
	f.fillCart(t, f.user.ID, map[int64]int{f.itemA.ID: 1, f.itemB.ID: 1})

	o, err := f.svc.CreateOrderFromCart(ctx, f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.CloseOrder(ctx, o.ID, f.user.ID)
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Equal(t, "B", stockErr.ItemName)
	require.Equal(t, "not enough stock for item: B", err.Error())

	require.Equal(t, 5, f.store.Stock(f.itemA.ID))
	require.Equal(t, 0, f.store.Stock(f.itemB.ID))

	after, err := f.svc.GetOrder(ctx, o.ID, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, after.Status)

	c, err := f.store.Carts().GetOrCreate(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	require.Equal(t, []string{"insufficient_stock"}, f.metrics.failures)
	require.Zero(t, f.catalog.count())
}

func TestConcurrentClosesForLastUnit(t *testing.T) {
	f := newFixture(t, 1, 5)
	ctx := context.Background()
	other := f.store.AddUser(domain.User{Email: "bob@example.com", Country: "Latvia", City: "Riga"})

	first, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)
	second, err := f.svc.AddItemToPendingOrder(ctx, other.ID, f.itemA.ID, 1)
	require.NoError(t, err)

	type attempt struct {
		orderID, userID int64
	}
	attempts := []attempt{{first.ID, f.user.ID}, {second.ID, other.ID}}
	errs := make([]error, len(attempts))

	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a attempt) {
			defer wg.Done()
			_, errs[i] = f.svc.CloseOrder(ctx, a.orderID, a.userID)
		}(i, a)
	}
	wg.Wait()

	succeeded, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, short)
	require.Equal(t, 0, f.store.Stock(f.itemA.ID))
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	f := newFixture(t, 5, 5)
	ctx := context.Background()
	other := f.store.AddUser(domain.User{Email: "bob@example.com"})

	o, err := f.svc.AddItemToPendingOrder(ctx, f.user.ID, f.itemA.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, o.ID, other.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	all, err := f.svc.GetUserOrders(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)

	history, err := f.svc.GetUserOrderHistory(ctx, f.user.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}
