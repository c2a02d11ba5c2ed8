// Package memstore is an in-memory stand-in for the Postgres repositories. It honours the
// same constraints (one cart per user, one pending order per user, non-negative stock) and
// rolls back every change made inside a failed WithinTx, so service tests exercise the
// real transaction boundaries without a database.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository/outbox"
	"shopfront/internal/repository/token"

	"github.com/shopspring/decimal"
)

type txKey struct{}

type cartRow struct {
	id    int64
	lines []cartLineRow
}

type cartLineRow struct {
	itemID   int64
	quantity int
}

type state struct {
	nextID    int64
	users     map[int64]domain.User
	items     map[int64]domain.Item
	carts     map[int64]cartRow
	orders    map[int64]domain.Order
	favorites map[int64][]int64
	tokens    map[string]token.Token
	outbox    []outbox.Record
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	now  func() time.Time
}

func New() *Store {
	return &Store{
		st: state{
			users:     map[int64]domain.User{},
			items:     map[int64]domain.Item{},
			carts:     map[int64]cartRow{},
			orders:    map[int64]domain.Order{},
			favorites: map[int64][]int64{},
			tokens:    map[string]token.Token{},
		},
		now: time.Now,
	}
}

// WithinTx serialises units of work and restores the pre-call state when fn fails.
// Nested calls join the outer unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

// AddUser inserts u directly and returns it with its id.
func (s *Store) AddUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	u.CreatedAt = s.now()
	s.st.users[u.ID] = u
	return u
}

// AddItem inserts it directly and returns it with its id.
func (s *Store) AddItem(it domain.Item) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.ID = s.id()
	it.CreatedAt = s.now()
	s.st.items[it.ID] = it
	return it
}

// SetPrice changes the catalog price of an item.
func (s *Store) SetPrice(itemID int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.st.items[itemID]
	it.Price = price
	s.st.items[itemID] = it
}

// DeleteItem drops the catalog row, leaving dangling cart references behind.
func (s *Store) DeleteItem(itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.items, itemID)
}

// Stock returns the current stock of itemID.
func (s *Store) Stock(itemID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.items[itemID].StockQuantity
}

// OrderCount returns the number of stored orders of userID.
func (s *Store) OrderCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.st.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n
}

// Events returns the recorded outbox events.
func (s *Store) Events() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Record(nil), s.st.outbox...)
}

func (st state) clone() state {
	out := state{
		nextID:    st.nextID,
		users:     make(map[int64]domain.User, len(st.users)),
		items:     make(map[int64]domain.Item, len(st.items)),
		carts:     make(map[int64]cartRow, len(st.carts)),
		orders:    make(map[int64]domain.Order, len(st.orders)),
		favorites: make(map[int64][]int64, len(st.favorites)),
		tokens:    make(map[string]token.Token, len(st.tokens)),
		outbox:    append([]outbox.Record(nil), st.outbox...),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.items {
		out.items[k] = v
	}
	for k, v := range st.carts {
		v.lines = append([]cartLineRow(nil), v.lines...)
		out.carts[k] = v
	}
	for k, v := range st.orders {
		out.orders[k] = copyOrder(v)
	}
	for k, v := range st.favorites {
		out.favorites[k] = append([]int64(nil), v...)
	}
	for k, v := range st.tokens {
		out.tokens[k] = v
	}
	return out
}

func copyOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return o
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
