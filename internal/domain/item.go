package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog entry. StockQuantity is mutated only through the inventory ledger.
type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
