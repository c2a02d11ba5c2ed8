package item

import (
	"context"
	"errors"
	"strings"

	"shopfront/internal/db"
	"shopfront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const itemColumns = `id, name, price, stock_quantity, image_url, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items ORDER BY id`
	return r.queryItems(ctx, "list", q)
}

func (r *postgresRepo) SearchByName(ctx context.Context, query string) ([]domain.Item, error) {
	const q = `
SELECT ` + itemColumns + `
FROM items
WHERE name ILIKE '%' || $1 || '%'
ORDER BY name
`
	return r.queryItems(ctx, "search", q, escapeLike(strings.TrimSpace(query)))
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	var it domain.Item
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, id).Scan(&it.ID, &it.Name, &it.Price, &it.StockQuantity, &it.ImageURL, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		r.logger.Error("item repo: get", zap.Int64("item_id", id), zap.Error(err))
		return nil, err
	}
	return &it, nil
}

// Upsert inserts an item or refreshes the price and image of the item with the same name.
// stock_quantity is only written on insert.
func (r *postgresRepo) Upsert(ctx context.Context, it domain.Item) (*domain.Item, error) {
	const q = `
INSERT INTO items (name, price, stock_quantity, image_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
    price = EXCLUDED.price,
    image_url = EXCLUDED.image_url
RETURNING ` + itemColumns
	var out domain.Item
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, it.Name, it.Price, it.StockQuantity, it.ImageURL).
		Scan(&out.ID, &out.Name, &out.Price, &out.StockQuantity, &out.ImageURL, &out.CreatedAt)
	if err != nil {
		r.logger.Error("item repo: upsert", zap.String("name", it.Name), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("item repo: upserted", zap.String("name", out.Name), zap.Int64("item_id", out.ID))
	return &out, nil
}

func (r *postgresRepo) GetStock(ctx context.Context, id int64) (int, error) {
	var qty int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT stock_quantity FROM items WHERE id = $1`, id).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrItemNotFound
		}
		return 0, err
	}
	return qty, nil
}

// DecreaseStock applies the conditional decrement in one statement so concurrent callers
// cannot both pass the sufficiency check. It reports false when stock is short and
// domain.ErrItemNotFound when the item does not exist.
func (r *postgresRepo) DecreaseStock(ctx context.Context, id int64, qty int) (bool, error) {
	conn := db.Conn(ctx, r.pool)
	cmd, err := conn.Exec(ctx, `
UPDATE items
SET stock_quantity = stock_quantity - $2
WHERE id = $1 AND stock_quantity >= $2
`, id, qty)
	if err != nil {
		return false, db.TranslateError(err)
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrItemNotFound
	}
	r.logger.Info("item repo: stock short", zap.Int64("item_id", id), zap.Int("requested", qty))
	return false, nil
}

func (r *postgresRepo) IncreaseStock(ctx context.Context, id int64, qty int) error {
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE items SET stock_quantity = stock_quantity + $2 WHERE id = $1`, id, qty)
	if err != nil {
		return db.TranslateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *postgresRepo) queryItems(ctx context.Context, op, q string, args ...any) ([]domain.Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("item repo: "+op, zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.StockQuantity, &it.ImageURL, &it.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("item repo: "+op+" rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("item repo: "+op, zap.Int("count", len(result)))
	return result, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
