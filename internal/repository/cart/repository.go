package cart

import (
	"context"

	"shopfront/internal/domain"
)

type Repository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first use.
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
	AddQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	SetQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	RemoveLine(ctx context.Context, cartID, itemID int64) error
	ClearByUser(ctx context.Context, userID int64) error
}
