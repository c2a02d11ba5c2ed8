package order

import (
	"context"

	"shopfront/internal/domain"
)

type Repository interface {
	// Create inserts the order and its lines, filling in generated ids.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetForUpdate loads the order and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	GetPendingByUser(ctx context.Context, userID int64, lock bool) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64, exclude ...domain.OrderStatus) ([]domain.Order, error)
	// Save persists status, totals and the line set: removed lines are deleted, existing
	// lines updated and lines with a zero id inserted.
	Save(ctx context.Context, o *domain.Order) error
}
