package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the quantity of a single item within one order.
const MaxLineQuantity = 2

type OrderStatus string

const (
	// OrderStatusPending is the single mutable order a user may hold.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusClosed is terminal; stock has been committed.
	OrderStatusClosed OrderStatus = "CLOSED"
	// OrderStatusCanceled is reached when the last line is removed; adding a line revives it.
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// ParseOrderStatus validates a persisted status value.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusClosed, OrderStatusCanceled:
		return OrderStatus(s), nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Order owns its lines; the user, items and cart are referenced by id only.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	OrderDate       time.Time       `json:"orderDate"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Status          OrderStatus     `json:"status"`
	Lines           []OrderLine     `json:"orderItems"`
}

// OrderLine carries the price frozen when the line was created. ID is zero until persisted.
type OrderLine struct {
	ID       int64           `json:"id"`
	OrderID  int64           `json:"-"`
	ItemID   int64           `json:"itemId"`
	ItemName string          `json:"itemName"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// StockRequest is one ledger debit derived from an order line.
type StockRequest struct {
	ItemID   int64
	ItemName string
	Quantity int
}

// NewPendingOrder returns an empty PENDING order for userID.
func NewPendingOrder(userID int64, shippingAddress string, now time.Time) *Order {
	return &Order{
		UserID:          userID,
		OrderDate:       now,
		ShippingAddress: shippingAddress,
		TotalPrice:      decimal.Zero,
		Status:          OrderStatusPending,
	}
}

// OwnedBy returns ErrNotAuthorized when the order belongs to someone else.
func (o *Order) OwnedBy(userID int64) error {
	if o.UserID != userID {
		return ErrNotAuthorized
	}
	return nil
}

func (o *Order) checkMutable() error {
	switch o.Status {
	case OrderStatusPending, OrderStatusCanceled:
		return nil
	case OrderStatusClosed:
		return ErrAlreadyClosed
	default:
		return fmt.Errorf("unknown order status %q", o.Status)
	}
}

// AddItem merges qty units of item into the order. A new line freezes item.Price.
// A CANCELED order becomes PENDING again once it holds a line.
func (o *Order) AddItem(item Item, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if err := o.checkMutable(); err != nil {
		return err
	}

	if idx := o.lineIndexByItem(item.ID); idx >= 0 {
		merged := o.Lines[idx].Quantity + qty
		if merged > MaxLineQuantity {
			return fmt.Errorf("%w: cannot add more than %d of the same item", ErrQuantityLimitExceeded, MaxLineQuantity)
		}
		o.Lines[idx].Quantity = merged
	} else {
		if qty > MaxLineQuantity {
			return fmt.Errorf("%w: cannot add more than %d of the same item", ErrQuantityLimitExceeded, MaxLineQuantity)
		}
		o.Lines = append(o.Lines, OrderLine{
			OrderID:  o.ID,
			ItemID:   item.ID,
			ItemName: item.Name,
			ImageURL: item.ImageURL,
			Quantity: qty,
			Price:    item.Price,
		})
	}

	o.Recalculate()
	switch o.Status {
	case OrderStatusCanceled:
		o.Status = OrderStatusPending
	case OrderStatusPending, OrderStatusClosed:
	}
	return nil
}

// RemoveLine drops lineID. Removing the last line cancels the order.
func (o *Order) RemoveLine(lineID int64) error {
	if err := o.checkMutable(); err != nil {
		return err
	}
	idx := o.lineIndex(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	o.Lines = append(o.Lines[:idx], o.Lines[idx+1:]...)
	o.Recalculate()
	if len(o.Lines) == 0 {
		o.Status = OrderStatusCanceled
	}
	return nil
}

// SetLineQuantity replaces the quantity of lineID; qty <= 0 removes the line.
func (o *Order) SetLineQuantity(lineID int64, qty int) error {
	if err := o.checkMutable(); err != nil {
		return err
	}
	idx := o.lineIndex(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	if qty > MaxLineQuantity {
		return fmt.Errorf("%w: cannot add more than %d of the same item", ErrQuantityLimitExceeded, MaxLineQuantity)
	}
	if qty <= 0 {
		return o.RemoveLine(lineID)
	}
	o.Lines[idx].Quantity = qty
	o.Recalculate()
	return nil
}

// Close moves a PENDING order to CLOSED. Stock must already be committed by the caller.
func (o *Order) Close() error {
	switch o.Status {
	case OrderStatusPending:
		o.Status = OrderStatusClosed
		return nil
	case OrderStatusClosed, OrderStatusCanceled:
		return ErrAlreadyClosed
	default:
		return fmt.Errorf("unknown order status %q", o.Status)
	}
}

// Recalculate sets TotalPrice to the sum of price x quantity over the lines.
func (o *Order) Recalculate() {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	o.TotalPrice = total
}

// StockRequests lists the ledger debits needed to close the order.
func (o *Order) StockRequests() []StockRequest {
	out := make([]StockRequest, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, StockRequest{ItemID: l.ItemID, ItemName: l.ItemName, Quantity: l.Quantity})
	}
	return out
}

func (o *Order) lineIndex(lineID int64) int {
	for i, l := range o.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func (o *Order) lineIndexByItem(itemID int64) int {
	for i, l := range o.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}
