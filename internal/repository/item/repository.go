package item

import (
	"context"

	"shopfront/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Item, error)
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	SearchByName(ctx context.Context, query string) ([]domain.Item, error)
	// Upsert keeps the stored stock of an existing item.
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)

	// Stock mutations. Only the inventory ledger calls these.
	GetStock(ctx context.Context, id int64) (int, error)
	DecreaseStock(ctx context.Context, id int64, qty int) (bool, error)
	IncreaseStock(ctx context.Context, id int64, qty int) error
}
