package domain

import "github.com/shopspring/decimal"

// Cart is a user's in-progress selection. Exactly one per user.
type Cart struct {
	ID     int64      `json:"id"`
	UserID int64      `json:"userId"`
	Lines  []CartLine `json:"items"`
}

// CartLine references a catalog item; Price is the current catalog price and is
// nil when the item row could not be resolved.
type CartLine struct {
	CartID   int64            `json:"-"`
	ItemID   int64            `json:"itemId"`
	ItemName string           `json:"itemName,omitempty"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Quantity int              `json:"quantity"`
}

// Line returns the line for itemID, if any.
func (c *Cart) Line(itemID int64) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ItemID == itemID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}
