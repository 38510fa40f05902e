package domain

import (
	"errors"
	"fmt"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidVariant  = errors.New("variant not offered for this product")
	ErrIndexOutOfRange = errors.New("line index out of range")
	ErrInvalidDiscount = pricing.ErrInvalidDiscount
	ErrNotFound        = errors.New("not found")
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentCancelled  = errors.New("payment cancelled")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrCommitFailed      = errors.New("inventory commit failed after payment capture")
	ErrTransient         = errors.New("transient backend error")

	ErrIllegalTransition = errors.New("illegal transition of checkout status")
	ErrVersionConflict   = errors.New("concurrent modification")
	ErrUnauthorized      = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
)

// InsufficientStockError names the product that could not be reserved and
// how many units were available at the time.
type InsufficientStockError struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
