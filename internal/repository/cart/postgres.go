package cart

import (
	"context"
	"errors"

	"shopfront/internal/db"
	"shopfront/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

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

func (r *postgresRepo) GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error) {
	const q = `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id
`
	conn := db.Conn(ctx, r.pool)
	cart := domain.Cart{UserID: userID}
	if err := conn.QueryRow(ctx, q, userID).Scan(&cart.ID); err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrUserNotFound
		}
		r.logger.Error("cart repo: get or create", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	// LEFT JOIN keeps lines whose item row is missing; Price stays nil for those.
	const linesQuery = `
SELECT ci.cart_id, ci.item_id, COALESCE(i.name, ''), COALESCE(i.image_url, ''), i.price, ci.quantity
FROM cart_items ci
LEFT JOIN items i ON i.id = ci.item_id
WHERE ci.cart_id = $1
ORDER BY ci.added_at ASC, ci.item_id ASC
`
	rows, err := conn.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		var price decimal.NullDecimal
		if err := rows.Scan(&line.CartID, &line.ItemID, &line.ItemName, &line.ImageURL, &price, &line.Quantity); err != nil {
			return nil, err
		}
		if price.Valid {
			p := price.Decimal
			line.Price = &p
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *postgresRepo) AddQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	const q = `
INSERT INTO cart_items (cart_id, item_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, item_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, cartID, itemID, qty); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrItemNotFound
		}
		return err
	}
	return nil
}

func (r *postgresRepo) SetQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE cart_items
SET quantity = $3
WHERE cart_id = $1 AND item_id = $2
`, cartID, itemID, qty)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *postgresRepo) RemoveLine(ctx context.Context, cartID, itemID int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND item_id = $2`, cartID, itemID)
	return err
}

func (r *postgresRepo) ClearByUser(ctx context.Context, userID int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
DELETE FROM cart_items
WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)
`, userID)
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
