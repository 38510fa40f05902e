package domain

import "time"

// ReservationStatus represents the state of a stock hold
type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusReleased  ReservationStatus = "released"
	StatusExpired   ReservationStatus = "expired"
)

// Reservation holds units of one product for a checkout until it is
// committed, released or expires.
type Reservation struct {
	ID         string
	CheckoutID string
	ProductID  string
	Quantity   int32
	Status     ReservationStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
	// SettledAt is when the reservation left StatusReserved.
	SettledAt time.Time
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// StockInfo is the ledger record for a product
type StockInfo struct {
	ProductID   string
	Total       int32 // units on hand, including reserved ones
	Reserved    int32 // units held by open reservations
	LastUpdated time.Time
}

// Available returns the units that can still be reserved
func (s StockInfo) Available() int32 {
	return s.Total - s.Reserved
}
