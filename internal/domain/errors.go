package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotAuthorized indicates the caller does not own the entity.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidArgument indicates a malformed request value, e.g. a non-positive quantity.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrQuantityLimitExceeded indicates a line would exceed MaxLineQuantity.
	ErrQuantityLimitExceeded = errors.New("quantity limit exceeded")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrAlreadyClosed         = errors.New("order already closed")
	ErrInsufficientStock     = errors.New("insufficient stock")
	// ErrConflict indicates a lost race: serialization failure or a concurrent pending order.
	ErrConflict = errors.New("conflict")

	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("item %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	ErrLineNotFound  = fmt.Errorf("line %w", ErrNotFound)
)

// InsufficientStockError names the item whose stock could not cover a close.
type InsufficientStockError struct {
	ItemID   int64
	ItemName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for item: %s", e.ItemName)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
