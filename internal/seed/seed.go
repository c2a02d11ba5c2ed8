package seed

import (
	"context"
	"errors"
	"fmt"

	"shopfront/internal/domain"
	usersvc "shopfront/internal/service/user"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DemoEmail and DemoPassword identify the account created by Apply.
const (
	DemoEmail    = "demo@shopfront.local"
	DemoPassword = "Demo1234"
)

type itemUpserter interface {
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)
}

type registrar interface {
	Register(ctx context.Context, in usersvc.RegisterInput) (*domain.User, usersvc.Tokens, error)
}

type itemSeed struct {
	Name     string
	Price    string
	Stock    int
	ImageURL string
}

var demoItems = []itemSeed{
	{Name: "Demo T-Shirt", Price: "19.99", Stock: 25, ImageURL: "https://picsum.photos/seed/tshirt/400"},
	{Name: "Demo Mug", Price: "12.99", Stock: 40, ImageURL: "https://picsum.photos/seed/mug/400"},
	{Name: "Demo Desk Lamp", Price: "34.50", Stock: 5},
	{Name: "Demo Notebook", Price: "4.25", Stock: 1},
}

// Apply inserts basic seed data for manual testing. Items are upserted by name and an
// existing demo user is left alone, so it can be run repeatedly.
func Apply(ctx context.Context, items itemUpserter, users registrar, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, s := range demoItems {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return fmt.Errorf("price for %s: %w", s.Name, err)
		}
		it, err := items.Upsert(ctx, domain.Item{
			Name:          s.Name,
			Price:         price,
			StockQuantity: s.Stock,
			ImageURL:      s.ImageURL,
		})
		if err != nil {
			return fmt.Errorf("upsert item %s: %w", s.Name, err)
		}
		logger.Debug("seeded item", zap.Int64("item_id", it.ID), zap.String("name", it.Name))
	}

	_, _, err := users.Register(ctx, usersvc.RegisterInput{
		Email:    DemoEmail,
		Password: DemoPassword,
		Profile: usersvc.Profile{
			FirstName: "Demo",
			LastName:  "User",
			Country:   "Estonia",
			City:      "Tallinn",
		},
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		logger.Info("demo user already present", zap.String("email", DemoEmail))
	case err != nil:
		return fmt.Errorf("register demo user: %w", err)
	}
	return nil
}
