package inventory

import (
	"context"
	"fmt"
	"sort"

	"shopfront/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("shopfront/inventory")

type itemRepo interface {
	GetStock(ctx context.Context, id int64) (int, error)
	DecreaseStock(ctx context.Context, id int64, qty int) (bool, error)
	IncreaseStock(ctx context.Context, id int64, qty int) error
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type recorder interface {
	ObserveStock(direction string, units int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStock(string, int) {}

// viewInvalidator drops cached read models that embed stock counters.
type viewInvalidator interface {
	Invalidate(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) {}

// Service is the only writer of item stock counters.
type Service struct {
	items   itemRepo
	tx      transactor
	views   viewInvalidator
	metrics recorder
	logger  *zap.Logger
}

// New builds the ledger. views and metrics are optional.
func New(items itemRepo, tx transactor, views viewInvalidator, metrics recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if views == nil {
		views = nopInvalidator{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{items: items, tx: tx, views: views, metrics: metrics, logger: logger}
}

func (s *Service) GetQuantity(ctx context.Context, itemID int64) (int, error) {
	return s.items.GetStock(ctx, itemID)
}

// Decrease removes qty units when the stock covers them and reports whether it did.
// An insufficient stock leaves the counter untouched and returns false.
func (s *Service) Decrease(ctx context.Context, itemID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}
	var ok bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ok, err = s.items.DecreaseStock(ctx, itemID, qty)
		return err
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.ObserveStock("out", qty)
		s.views.Invalidate(ctx)
	} else {
		s.logger.Info("stock decrease rejected", zap.Int64("item_id", itemID), zap.Int("quantity", qty))
	}
	return ok, nil
}

func (s *Service) Increase(ctx context.Context, itemID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.items.IncreaseStock(ctx, itemID, qty)
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveStock("in", qty)
	s.views.Invalidate(ctx)
	return nil
}

// Commit debits every request or none of them. Requests for the same item are merged and
// applied in item id order. The first item that cannot be covered aborts the enclosing
// transaction with an *domain.InsufficientStockError. Commit runs inside the caller's
// transaction, so cached views are left to the caller to invalidate once it commits.
func (s *Service) Commit(ctx context.Context, reqs []domain.StockRequest) error {
	ctx, span := tracer.Start(ctx, "inventory.Commit")
	defer span.End()

	merged := mergeRequests(reqs)
	span.SetAttributes(attribute.Int("inventory.items", len(merged)))

	units := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, r := range merged {
			if r.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
			}
			ok, err := s.items.DecreaseStock(ctx, r.ItemID, r.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.InsufficientStockError{ItemID: r.ItemID, ItemName: r.ItemName}
			}
			units += r.Quantity
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.ObserveStock("out", units)
	return nil
}

func mergeRequests(reqs []domain.StockRequest) []domain.StockRequest {
	byItem := make(map[int64]int, len(reqs))
	out := make([]domain.StockRequest, 0, len(reqs))
	for _, r := range reqs {
		if idx, ok := byItem[r.ItemID]; ok {
			out[idx].Quantity += r.Quantity
			continue
		}
		byItem[r.ItemID] = len(out)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
