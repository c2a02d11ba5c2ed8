package favorite

import (
	"context"

	"shopfront/internal/domain"
)

type favoriteRepo interface {
	List(ctx context.Context, userID int64) ([]domain.Item, error)
	Add(ctx context.Context, userID, itemID int64) error
	Remove(ctx context.Context, userID, itemID int64) error
}

type Service struct {
	repo favoriteRepo
}

func New(repo favoriteRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID int64) ([]domain.Item, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

// Add marks itemID as a favorite; adding it twice is a no-op.
func (s *Service) Add(ctx context.Context, userID, itemID int64) error {
	return s.repo.Add(ctx, userID, itemID)
}

func (s *Service) Remove(ctx context.Context, userID, itemID int64) error {
	return s.repo.Remove(ctx, userID, itemID)
}
