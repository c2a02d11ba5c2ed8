package cart

import (
	"context"
	"fmt"

	"shopfront/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartRepo interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
	AddQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	SetQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	RemoveLine(ctx context.Context, cartID, itemID int64) error
	ClearByUser(ctx context.Context, userID int64) error
}

type itemRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service manages a user's cart. It never consults stock; that happens when an order closes.
type Service struct {
	repo   cartRepo
	items  itemRepo
	tx     transactor
	logger *zap.Logger
}

func New(repo cartRepo, items itemRepo, tx transactor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, items: items, tx: tx, logger: logger}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// AddItem adds qty units of itemID, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, userID, itemID int64, qty int) (*domain.Cart, error) {
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	var out *domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.items.GetByID(ctx, itemID); err != nil {
			return err
		}
		c, err := s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.repo.AddQuantity(ctx, c.ID, itemID, qty); err != nil {
			return err
		}
		out, err = s.repo.GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cart item added", zap.Int64("user_id", userID), zap.Int64("item_id", itemID), zap.Int("quantity", qty))
	return out, nil
}

// UpdateItem replaces the quantity of an existing line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID int64, qty int) (*domain.Cart, error) {
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	var out *domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if _, ok := c.Line(itemID); !ok {
			return domain.ErrItemNotFound
		}
		if err := s.repo.SetQuantity(ctx, c.ID, itemID, qty); err != nil {
			return err
		}
		out, err = s.repo.GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem drops the line for itemID. Removing an absent line is not an error.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.repo.RemoveLine(ctx, c.ID, itemID); err != nil {
			return err
		}
		out, err = s.repo.GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear empties the cart; the cart record itself is kept.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
			return err
		}
		return s.repo.ClearByUser(ctx, userID)
	})
}

// Total sums price x quantity over the cart. Lines whose item no longer resolves to a
// price are skipped and logged.
func (s *Service) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range c.Lines {
		if l.Price == nil {
			s.logger.Warn("cart line without price skipped", zap.Int64("user_id", userID), zap.Int64("item_id", l.ItemID))
			continue
		}
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}

func validateQuantity(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}
	return nil
}
