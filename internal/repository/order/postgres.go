package order

import (
	"context"
	"errors"

	"shopfront/internal/db"
	"shopfront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const orderColumns = `id, user_id, status, order_date, shipping_address, total_price`

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

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	const q = `
INSERT INTO orders (user_id, status, order_date, shipping_address, total_price)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
	conn := db.Conn(ctx, r.pool)
	if err := conn.QueryRow(ctx, q, o.UserID, string(o.Status), o.OrderDate, o.ShippingAddress, o.TotalPrice).Scan(&o.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		r.logger.Error("order repo: create", zap.Int64("user_id", o.UserID), zap.Error(err))
		return db.TranslateError(err)
	}
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
		if err := insertLine(ctx, conn, &o.Lines[i]); err != nil {
			return err
		}
	}
	r.logger.Debug("order repo: created", zap.Int64("order_id", o.ID), zap.Int("lines", len(o.Lines)))
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.fetchOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.fetchOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresRepo) GetPendingByUser(ctx context.Context, userID int64, lock bool) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND status = 'PENDING'`
	if lock {
		q += ` FOR UPDATE`
	}
	return r.fetchOrder(ctx, q, userID)
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID int64, exclude ...domain.OrderStatus) ([]domain.Order, error) {
	excluded := make([]string, 0, len(exclude))
	for _, s := range exclude {
		excluded = append(excluded, string(s))
	}
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1 AND NOT (status = ANY($2))
ORDER BY order_date DESC, id DESC
`
	conn := db.Conn(ctx, r.pool)
	rows, err := conn.Query(ctx, q, userID, excluded)
	if err != nil {
		r.logger.Error("order repo: list", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := loadLines(ctx, conn, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (r *postgresRepo) Save(ctx context.Context, o *domain.Order) error {
	conn := db.Conn(ctx, r.pool)

	keep := make([]int64, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.ID != 0 {
			keep = append(keep, l.ID)
		}
	}
	if _, err := conn.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1 AND NOT (id = ANY($2))`, o.ID, keep); err != nil {
		return db.TranslateError(err)
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		if line.ID == 0 {
			line.OrderID = o.ID
			if err := insertLine(ctx, conn, line); err != nil {
				return err
			}
			continue
		}
		if _, err := conn.Exec(ctx, `
UPDATE order_items
SET quantity = $3, price = $4
WHERE id = $1 AND order_id = $2
`, line.ID, o.ID, line.Quantity, line.Price); err != nil {
			return db.TranslateError(err)
		}
	}

	cmd, err := conn.Exec(ctx, `
UPDATE orders
SET status = $2, shipping_address = $3, total_price = $4
WHERE id = $1
`, o.ID, string(o.Status), o.ShippingAddress, o.TotalPrice)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		r.logger.Error("order repo: save", zap.Int64("order_id", o.ID), zap.Error(err))
		return db.TranslateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepo) fetchOrder(ctx context.Context, q string, args ...any) (*domain.Order, error) {
	conn := db.Conn(ctx, r.pool)
	o, err := scanOrder(conn.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, db.TranslateError(err)
	}
	lines, err := loadLines(ctx, conn, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &status, &o.OrderDate, &o.ShippingAddress, &o.TotalPrice); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	o.Status = parsed
	return &o, nil
}

func loadLines(ctx context.Context, conn db.Querier, orderID int64) ([]domain.OrderLine, error) {
	const q = `
SELECT oi.id, oi.order_id, oi.item_id, i.name, i.image_url, oi.quantity, oi.price
FROM order_items oi
JOIN items i ON i.id = oi.item_id
WHERE oi.order_id = $1
ORDER BY oi.id
`
	rows, err := conn.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemName, &l.ImageURL, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func insertLine(ctx context.Context, conn db.Querier, l *domain.OrderLine) error {
	err := conn.QueryRow(ctx, `
INSERT INTO order_items (order_id, item_id, quantity, price)
VALUES ($1, $2, $3, $4)
RETURNING id
`, l.OrderID, l.ItemID, l.Quantity, l.Price).Scan(&l.ID)
	return db.TranslateError(err)
}
