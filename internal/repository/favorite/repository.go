package favorite

import (
	"context"

	"shopfront/internal/domain"
)

type Repository interface {
	List(ctx context.Context, userID int64) ([]domain.Item, error)
	Add(ctx context.Context, userID, itemID int64) error
	Remove(ctx context.Context, userID, itemID int64) error
}
