package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nana-k-osei/LAGC/inventory-service/internal/domain"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation has expired")
	ErrInvalidStatus       = errors.New("invalid reservation status for this operation")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	// ErrTransient is returned when the backend could not apply an update
	// because of contention or unavailability. The operation may be retried.
	ErrTransient = errors.New("transient inventory backend error")
)

// InsufficientStockError reports how many units were available when a
// reservation was refused.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

const (
	// DefaultReservationTTL is how long a hold lives before it is swept.
	DefaultReservationTTL = 10 * time.Minute
	MinReservationTTL     = 5 * time.Minute
	MaxReservationTTL     = 15 * time.Minute

	DefaultCleanupInterval = 30 * time.Second

	// DefaultSettledRetention is how long a committed, released or expired
	// reservation stays readable before it is pruned.
	DefaultSettledRetention = time.Hour
)

func belowReserved(total, reserved int32) error {
	return fmt.Errorf("%w: total %d is below %d reserved units", ErrInvalidQuantity, total, reserved)
}

// ClampTTL keeps a configured hold duration inside the allowed window.
func ClampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return DefaultReservationTTL
	case ttl < MinReservationTTL:
		return MinReservationTTL
	case ttl > MaxReservationTTL:
		return MaxReservationTTL
	}
	return ttl
}

// InventoryStore is the serialization point for stock changes. Every
// implementation must make Reserve atomic with respect to concurrent callers
// so that available stock never goes negative.
type InventoryStore interface {
	// GetStock returns ledger records for the known products among productIDs.
	GetStock(ctx context.Context, productIDs []string) ([]domain.StockInfo, error)

	// GetAvailable returns the reservable units of a product.
	GetAvailable(ctx context.Context, productID string) (int32, error)

	// Reserve holds quantity units of a product for a checkout.
	Reserve(ctx context.Context, checkoutID, productID string, quantity int32) (*domain.Reservation, error)

	// Commit permanently deducts a held reservation. Committing a confirmed
	// reservation again is a no-op.
	Commit(ctx context.Context, reservationID string) error

	// Release returns held units to the pool. Releasing a reservation that is
	// already released or expired is a no-op.
	Release(ctx context.Context, reservationID string) error

	// Restock adds units to a product, creating it when unknown.
	Restock(ctx context.Context, productID string, quantity int32) (domain.StockInfo, error)

	// SetStock sets the total for a product, creating it when unknown. Open
	// holds are kept, so a total below the reserved count is rejected.
	SetStock(ctx context.Context, productID string, quantity int32) error

	// ListStock returns every known product ordered by product id.
	ListStock(ctx context.Context) ([]domain.StockInfo, error)

	// ExpireReservations expires holds past their TTL and returns how many
	// were expired. Settled reservations older than the retention window are
	// dropped.
	ExpireReservations(ctx context.Context) (int, error)

	Close() error
}
