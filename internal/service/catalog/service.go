package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"shopfront/internal/cache"
	"shopfront/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	listKey       = "items"
	generationKey = "generation"
)

type itemRepo interface {
	List(ctx context.Context) ([]domain.Item, error)
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	SearchByName(ctx context.Context, query string) ([]domain.Item, error)
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)
}

// Service serves read-mostly item metadata. Cached snapshots are for display only; stock
// decisions always go through the inventory ledger.
//
// Every cache key carries the current generation. Invalidate bumps it, which retires the
// list, item and search entries at once; retired entries age out through the cache TTL.
type Service struct {
	repo   itemRepo
	cache  cache.Cache
	logger *zap.Logger
}

func New(repo itemRepo, c cache.Cache, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: c, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]domain.Item, error) {
	gen, useCache := s.generation(ctx)
	key := scopedKey(gen, listKey)
	var items []domain.Item
	if useCache && s.cached(ctx, key, &items) {
		return items, nil
	}
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if useCache {
		s.store(ctx, key, items)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Item, error) {
	gen, useCache := s.generation(ctx)
	key := scopedKey(gen, itemKey(id))
	var item domain.Item
	if useCache && s.cached(ctx, key, &item) {
		return &item, nil
	}
	found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if useCache {
		s.store(ctx, key, found)
	}
	return found, nil
}

// Search matches items whose name contains query, ignoring case. An empty query lists
// everything.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Item, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}
	gen, useCache := s.generation(ctx)
	key := scopedKey(gen, "search:"+q)
	var items []domain.Item
	if useCache && s.cached(ctx, key, &items) {
		return items, nil
	}
	items, err := s.repo.SearchByName(ctx, q)
	if err != nil {
		return nil, err
	}
	if useCache {
		s.store(ctx, key, items)
	}
	return items, nil
}

// Upsert creates an item or refreshes the price and image of the item with the same name.
// StockQuantity is only used when the item is created; restocking goes through the
// inventory ledger.
func (s *Service) Upsert(ctx context.Context, item domain.Item) (*domain.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidArgument)
	}
	if item.Price.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidArgument)
	}
	if item.StockQuantity < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidArgument)
	}
	out, err := s.repo.Upsert(ctx, item)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return out, nil
}

// Invalidate retires every cached catalog view. The inventory ledger calls it after stock
// moves.
func (s *Service) Invalidate(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, generationKey); err != nil {
		s.logger.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}

// generation reports the current cache generation. When it cannot be read the cache is
// bypassed for the call.
func (s *Service) generation(ctx context.Context) (int64, bool) {
	var gen int64
	if _, err := s.cache.Get(ctx, generationKey, &gen); err != nil {
		s.logger.Warn("catalog cache generation read failed", zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func scopedKey(gen int64, key string) string {
	return "g" + strconv.FormatInt(gen, 10) + ":" + key
}

func itemKey(id int64) string {
	return "item:" + strconv.FormatInt(id, 10)
}
