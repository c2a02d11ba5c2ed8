package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository/cart"
	"shopfront/internal/repository/favorite"
	"shopfront/internal/repository/item"
	"shopfront/internal/repository/order"
	"shopfront/internal/repository/outbox"
	"shopfront/internal/repository/token"
	"shopfront/internal/repository/user"

	"github.com/google/uuid"
)

func (s *Store) Items() item.Repository         { return itemRepo{s} }
func (s *Store) Users() user.Repository         { return userRepo{s} }
func (s *Store) Carts() cart.Repository         { return cartRepo{s} }
func (s *Store) Orders() order.Repository       { return orderRepo{s} }
func (s *Store) Favorites() favorite.Repository { return favoriteRepo{s} }
func (s *Store) Tokens() token.Repository       { return tokenRepo{s} }
func (s *Store) Outbox() outbox.Repository      { return outboxRepo{s} }

type itemRepo struct{ s *Store }

func (r itemRepo) List(context.Context) ([]domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Item, 0, len(r.s.st.items))
	for _, it := range r.s.st.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r itemRepo) GetByID(_ context.Context, id int64) (*domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.st.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &it, nil
}

func (r itemRepo) SearchByName(ctx context.Context, query string) ([]domain.Item, error) {
	all, _ := r.List(ctx)
	q := strings.ToLower(strings.TrimSpace(query))
	var out []domain.Item
	for _, it := range all {
		if strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r itemRepo) Upsert(_ context.Context, it domain.Item) (*domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.st.items {
		if existing.Name == it.Name {
			it.ID, it.CreatedAt, it.StockQuantity = id, existing.CreatedAt, existing.StockQuantity
			r.s.st.items[id] = it
			return &it, nil
		}
	}
	it.ID = r.s.id()
	it.CreatedAt = r.s.now()
	r.s.st.items[it.ID] = it
	return &it, nil
}

func (r itemRepo) GetStock(_ context.Context, id int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.st.items[id]
	if !ok {
		return 0, domain.ErrItemNotFound
	}
	return it.StockQuantity, nil
}

func (r itemRepo) DecreaseStock(_ context.Context, id int64, qty int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.st.items[id]
	if !ok {
		return false, domain.ErrItemNotFound
	}
	if it.StockQuantity < qty {
		return false, nil
	}
	it.StockQuantity -= qty
	r.s.st.items[id] = it
	return true, nil
}

func (r itemRepo) IncreaseStock(_ context.Context, id int64, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.st.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	it.StockQuantity += qty
	r.s.st.items[id] = it
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.users {
		if normalizeEmail(existing.Email) == normalizeEmail(u.Email) {
			return nil, domain.ErrAlreadyExists
		}
	}
	u.ID = r.s.id()
	u.CreatedAt = r.s.now()
	r.s.st.users[u.ID] = u
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if normalizeEmail(u.Email) == normalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) UpdateProfile(_ context.Context, u domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.users[u.ID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cur.FirstName, cur.LastName, cur.Phone = u.FirstName, u.LastName, u.Phone
	cur.Country, cur.City = u.Country, u.City
	r.s.st.users[u.ID] = cur
	return &cur, nil
}

// Delete cascades like the foreign keys of the schema.
func (r userRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.st.users, id)
	delete(r.s.st.carts, id)
	delete(r.s.st.favorites, id)
	for k, o := range r.s.st.orders {
		if o.UserID == id {
			delete(r.s.st.orders, k)
		}
	}
	for k, t := range r.s.st.tokens {
		if t.UserID == id {
			delete(r.s.st.tokens, k)
		}
	}
	return nil
}

type cartRepo struct{ s *Store }

func (r cartRepo) GetOrCreate(_ context.Context, userID int64) (*domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.users[userID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	row, ok := r.s.st.carts[userID]
	if !ok {
		row = cartRow{id: r.s.id()}
		r.s.st.carts[userID] = row
	}
	c := &domain.Cart{ID: row.id, UserID: userID}
	for _, l := range row.lines {
		line := domain.CartLine{CartID: row.id, ItemID: l.itemID, Quantity: l.quantity}
		if it, ok := r.s.st.items[l.itemID]; ok {
			price := it.Price
			line.ItemName, line.ImageURL, line.Price = it.Name, it.ImageURL, &price
		}
		c.Lines = append(c.Lines, line)
	}
	return c, nil
}

func (r cartRepo) find(cartID int64) (int64, cartRow, bool) {
	for userID, row := range r.s.st.carts {
		if row.id == cartID {
			return userID, row, true
		}
	}
	return 0, cartRow{}, false
}

func (r cartRepo) AddQuantity(_ context.Context, cartID, itemID int64, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.items[itemID]; !ok {
		return domain.ErrItemNotFound
	}
	userID, row, ok := r.find(cartID)
	if !ok {
		return domain.ErrNotFound
	}
	for i := range row.lines {
		if row.lines[i].itemID == itemID {
			row.lines[i].quantity += qty
			r.s.st.carts[userID] = row
			return nil
		}
	}
	row.lines = append(row.lines, cartLineRow{itemID: itemID, quantity: qty})
	r.s.st.carts[userID] = row
	return nil
}

func (r cartRepo) SetQuantity(_ context.Context, cartID, itemID int64, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	userID, row, ok := r.find(cartID)
	if !ok {
		return domain.ErrItemNotFound
	}
	for i := range row.lines {
		if row.lines[i].itemID == itemID {
			row.lines[i].quantity = qty
			r.s.st.carts[userID] = row
			return nil
		}
	}
	return domain.ErrItemNotFound
}

func (r cartRepo) RemoveLine(_ context.Context, cartID, itemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	userID, row, ok := r.find(cartID)
	if !ok {
		return nil
	}
	kept := row.lines[:0:0]
	for _, l := range row.lines {
		if l.itemID != itemID {
			kept = append(kept, l)
		}
	}
	row.lines = kept
	r.s.st.carts[userID] = row
	return nil
}

func (r cartRepo) ClearByUser(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.st.carts[userID]; ok {
		row.lines = nil
		r.s.st.carts[userID] = row
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) hasOtherPending(o *domain.Order) bool {
	for id, existing := range r.s.st.orders {
		if id != o.ID && existing.UserID == o.UserID && existing.Status == domain.OrderStatusPending {
			return true
		}
	}
	return false
}

func (r orderRepo) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o.Status == domain.OrderStatusPending && r.hasOtherPending(o) {
		return domain.ErrConflict
	}
	o.ID = r.s.id()
	for i := range o.Lines {
		o.Lines[i].ID = r.s.id()
		o.Lines[i].OrderID = o.ID
	}
	r.s.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r orderRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepo) GetPendingByUser(_ context.Context, userID int64, _ bool) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.st.orders {
		if o.UserID == userID && o.Status == domain.OrderStatusPending {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r orderRepo) ListByUser(_ context.Context, userID int64, exclude ...domain.OrderStatus) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, o := range r.s.st.orders {
		if o.UserID != userID || containsStatus(exclude, o.Status) {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r orderRepo) Save(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status == domain.OrderStatusPending && r.hasOtherPending(o) {
		return domain.ErrConflict
	}
	for i := range o.Lines {
		if o.Lines[i].ID == 0 {
			o.Lines[i].ID = r.s.id()
			o.Lines[i].OrderID = o.ID
		}
	}
	r.s.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func containsStatus(list []domain.OrderStatus, s domain.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type favoriteRepo struct{ s *Store }

func (r favoriteRepo) List(_ context.Context, userID int64) ([]domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Item
	for _, id := range r.s.st.favorites[userID] {
		if it, ok := r.s.st.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r favoriteRepo) Add(_ context.Context, userID, itemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.items[itemID]; !ok {
		return domain.ErrItemNotFound
	}
	for _, id := range r.s.st.favorites[userID] {
		if id == itemID {
			return nil
		}
	}
	r.s.st.favorites[userID] = append(r.s.st.favorites[userID], itemID)
	return nil
}

func (r favoriteRepo) Remove(_ context.Context, userID, itemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := r.s.st.favorites[userID]
	kept := ids[:0:0]
	for _, id := range ids {
		if id != itemID {
			kept = append(kept, id)
		}
	}
	r.s.st.favorites[userID] = kept
	return nil
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, t token.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.tokens[t.Token]; ok {
		return domain.ErrAlreadyExists
	}
	t.CreatedAt = r.s.now()
	r.s.st.tokens[t.Token] = t
	return nil
}

func (r tokenRepo) Get(_ context.Context, tok string) (*token.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.tokens[tok]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r tokenRepo) Delete(_ context.Context, tok string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.tokens[tok]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.st.tokens, tok)
	return nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, t := range r.s.st.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.s.st.tokens, k)
			n++
		}
	}
	return n, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(_ context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.outbox = append(r.s.st.outbox, outbox.Record{
		ID:        int64(len(r.s.st.outbox) + 1),
		EventID:   uuid.NewString(),
		Topic:     topic,
		Key:       key,
		Payload:   data,
		CreatedAt: r.s.now(),
	})
	return nil
}

func (r outboxRepo) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []outbox.Record
	for _, rec := range r.s.st.outbox {
		if rec.SentAt == nil && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r outboxRepo) MarkSent(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.st.outbox {
		if r.s.st.outbox[i].ID == id {
			now := r.s.now()
			r.s.st.outbox[i].SentAt = &now
		}
	}
	return nil
}
