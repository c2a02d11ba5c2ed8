package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("shopfront/order")

type orderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	GetPendingByUser(ctx context.Context, userID int64, lock bool) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64, exclude ...domain.OrderStatus) ([]domain.Order, error)
	Save(ctx context.Context, o *domain.Order) error
}

type itemRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
}

type cartRepo interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
	ClearByUser(ctx context.Context, userID int64) error
}

type userRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type stockLedger interface {
	Commit(ctx context.Context, reqs []domain.StockRequest) error
}

type eventOutbox interface {
	Insert(ctx context.Context, topic, key string, payload any) error
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type recorder interface {
	ObserveTransition(from, to string)
	ObserveCloseFailure(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string, string) {}
func (nopRecorder) ObserveCloseFailure(string)       {}

type viewInvalidator interface {
	Invalidate(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) {}

// Deps groups the collaborators of the order service. Metrics and Catalog are optional;
// Catalog is invalidated after a close commits stock.
type Deps struct {
	Orders  orderRepo
	Items   itemRepo
	Carts   cartRepo
	Users   userRepo
	Stock   stockLedger
	Outbox  eventOutbox
	Tx      transactor
	Metrics recorder
	Catalog viewInvalidator
}

// Service drives the order lifecycle: PENDING orders are built from single items or from
// the cart, lines are edited under the per-line cap, and Close commits stock for every line
// in the same transaction that marks the order CLOSED.
type Service struct {
	orders  orderRepo
	items   itemRepo
	carts   cartRepo
	users   userRepo
	stock   stockLedger
	outbox  eventOutbox
	tx      transactor
	metrics recorder
	catalog viewInvalidator
	logger  *zap.Logger
	now     func() time.Time
}

func New(deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Catalog == nil {
		deps.Catalog = nopInvalidator{}
	}
	return &Service{
		orders:  deps.Orders,
		items:   deps.Items,
		carts:   deps.Carts,
		users:   deps.Users,
		stock:   deps.Stock,
		outbox:  deps.Outbox,
		tx:      deps.Tx,
		metrics: deps.Metrics,
		catalog: deps.Catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddItemToPendingOrder adds qty units of itemID to the user's PENDING order, creating the
// order when the user has none.
func (s *Service) AddItemToPendingOrder(ctx context.Context, userID, itemID int64, qty int) (*domain.Order, error) {
	var out *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}

		o, err := s.orders.GetPendingByUser(ctx, userID, true)
		switch {
		case err == nil:
			if err := o.AddItem(*item, qty); err != nil {
				return err
			}
			if err := s.orders.Save(ctx, o); err != nil {
				return err
			}
		case errors.Is(err, domain.ErrNotFound):
			o, err = s.newPendingOrder(ctx, userID)
			if err != nil {
				return err
			}
			if err := o.AddItem(*item, qty); err != nil {
				return err
			}
			if err := s.create(ctx, o); err != nil {
				return err
			}
		default:
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddItemToOrder adds qty units of itemID to a specific order of the user. A CANCELED order
// is revived to PENDING.
func (s *Service) AddItemToOrder(ctx context.Context, orderID, itemID int64, qty int, userID int64) (*domain.Order, error) {
	return s.mutate(ctx, orderID, userID, func(ctx context.Context, o *domain.Order) error {
		item, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		return o.AddItem(*item, qty)
	})
}

// RemoveLineFromOrder drops a line; removing the last one cancels the order.
func (s *Service) RemoveLineFromOrder(ctx context.Context, orderID, lineID, userID int64) (*domain.Order, error) {
	return s.mutate(ctx, orderID, userID, func(_ context.Context, o *domain.Order) error {
		return o.RemoveLine(lineID)
	})
}

// UpdateLineQuantity sets a line's quantity; a non-positive quantity removes the line.
func (s *Service) UpdateLineQuantity(ctx context.Context, orderID, lineID int64, qty int, userID int64) (*domain.Order, error) {
	return s.mutate(ctx, orderID, userID, func(_ context.Context, o *domain.Order) error {
		return o.SetLineQuantity(lineID, qty)
	})
}

// mutate loads the order under its row lock, applies fn and persists the result.
func (s *Service) mutate(ctx context.Context, orderID, userID int64, fn func(ctx context.Context, o *domain.Order) error) (*domain.Order, error) {
	var out *domain.Order
	var from domain.OrderStatus
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.OwnedBy(userID); err != nil {
			return err
		}
		from = o.Status
		if err := fn(ctx, o); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != out.Status {
		s.metrics.ObserveTransition(string(from), string(out.Status))
		s.logger.Info("order status changed",
			zap.Int64("order_id", out.ID),
			zap.String("from", string(from)),
			zap.String("to", string(out.Status)),
		)
	}
	return out, nil
}

// CreateOrderFromCart materialises the cart as the user's PENDING order. An existing
// PENDING order is rebuilt from the cart instead of creating a second one. The cart is
// left untouched until the order closes.
func (s *Service) CreateOrderFromCart(ctx context.Context, userID int64) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "order.CreateFromCart", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var out *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if c.Empty() {
			return domain.ErrEmptyCart
		}
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		o, err := s.orders.GetPendingByUser(ctx, userID, true)
		existing := err == nil
		switch {
		case existing:
			o.Lines = nil
			o.ShippingAddress = u.ShippingAddress()
		case errors.Is(err, domain.ErrNotFound):
			o = domain.NewPendingOrder(userID, u.ShippingAddress(), s.now())
		default:
			return err
		}

		for _, line := range c.Lines {
			item, err := s.items.GetByID(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if err := o.AddItem(*item, line.Quantity); err != nil {
				return err
			}
		}

		if existing {
			if err := s.orders.Save(ctx, o); err != nil {
				return err
			}
		} else if err := s.create(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", out.ID))
	s.logger.Info("order created from cart",
		zap.Int64("order_id", out.ID),
		zap.Int64("user_id", userID),
		zap.Int("lines", len(out.Lines)),
		zap.String("total", out.TotalPrice.StringFixed(2)),
	)
	return out, nil
}

// CloseOrder commits stock for every line and marks the order CLOSED, all in one
// transaction. If any line cannot be covered nothing is debited and the order stays PENDING.
// On success the user's cart is cleared.
func (s *Service) CloseOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "order.Close",
		trace.WithAttributes(attribute.Int64("order.id", orderID), attribute.Int64("user.id", userID)))
	defer span.End()

	var out *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.OwnedBy(userID); err != nil {
			return err
		}
		reqs := o.StockRequests()
		if err := o.Close(); err != nil {
			return err
		}
		if err := s.stock.Commit(ctx, reqs); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return err
		}
		if err := s.carts.ClearByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, events.TopicOrderClosed, orderKey(o.ID), s.event(o)); err != nil {
			return fmt.Errorf("record order.closed: %w", err)
		}
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveCloseFailure(closeFailureReason(err))
		s.logger.Info("order close rejected", zap.Int64("order_id", orderID), zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.catalog.Invalidate(ctx)
	s.metrics.ObserveTransition(string(domain.OrderStatusPending), string(domain.OrderStatusClosed))
	s.logger.Info("order closed",
		zap.Int64("order_id", out.ID),
		zap.Int64("user_id", userID),
		zap.String("total", out.TotalPrice.StringFixed(2)),
	)
	return out, nil
}

// GetUserOrderHistory lists the user's CLOSED orders, newest first.
func (s *Service) GetUserOrderHistory(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID, domain.OrderStatusPending, domain.OrderStatusCanceled)
}

// GetUserOrders lists every order of the user regardless of status.
func (s *Service) GetUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) GetPendingOrder(ctx context.Context, userID int64) (*domain.Order, error) {
	return s.orders.GetPendingByUser(ctx, userID, false)
}

// GetOrder hides orders of other users behind ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnedBy(userID) != nil {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) newPendingOrder(ctx context.Context, userID int64) (*domain.Order, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NewPendingOrder(userID, u.ShippingAddress(), s.now()), nil
}

func (s *Service) create(ctx context.Context, o *domain.Order) error {
	if err := s.orders.Create(ctx, o); err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, events.TopicOrderCreated, orderKey(o.ID), s.event(o)); err != nil {
		return fmt.Errorf("record order.created: %w", err)
	}
	return nil
}

func (s *Service) event(o *domain.Order) events.OrderEvent {
	return events.OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice.StringFixed(2),
		OccurredAt: s.now(),
	}
}

func orderKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func closeFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrAlreadyClosed):
		return "already_closed"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
