package favorite

import (
	"context"
	"errors"

	"shopfront/internal/db"
	"shopfront/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) List(ctx context.Context, userID int64) ([]domain.Item, error) {
	const q = `
SELECT i.id, i.name, i.price, i.stock_quantity, i.image_url, i.created_at
FROM favorite_items f
JOIN items i ON i.id = f.item_id
WHERE f.user_id = $1
ORDER BY f.created_at DESC
`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.StockQuantity, &it.ImageURL, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepo) Add(ctx context.Context, userID, itemID int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO favorite_items (user_id, item_id)
VALUES ($1, $2)
ON CONFLICT (user_id, item_id) DO NOTHING
`, userID, itemID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrItemNotFound
		}
		return err
	}
	return nil
}

func (r *postgresRepo) Remove(ctx context.Context, userID, itemID int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM favorite_items WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	return err
}
