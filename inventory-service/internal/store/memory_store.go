package store

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nana-k-osei/LAGC/inventory-service/internal/domain"
)

// Options tune reservation holds. Zero values use the defaults.
type Options struct {
	ReservationTTL  time.Duration
	CleanupInterval time.Duration
	// SettledRetention keeps settled reservations readable so repeated
	// Commit and Release calls stay idempotent.
	SettledRetention time.Duration
	Logger          *slog.Logger
	// Now is the clock used for expiry; tests override it.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	o.ReservationTTL = ClampTTL(o.ReservationTTL)
	if o.CleanupInterval == 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
	if o.SettledRetention <= 0 {
		o.SettledRetention = DefaultSettledRetention
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// MemoryStore implements InventoryStore in process. A single mutex serializes
// every stock change, so one inventory-service instance is the single writer.
type MemoryStore struct {
	mu           sync.RWMutex
	stocks       map[string]*domain.StockInfo   // productID -> stock info
	reservations map[string]*domain.Reservation // reservationID -> reservation

	opts    Options
	sweeper *sweeper
}

func NewMemoryStore(opts Options) *MemoryStore {
	s := &MemoryStore{
		stocks:       make(map[string]*domain.StockInfo),
		reservations: make(map[string]*domain.Reservation),
		opts:         opts.withDefaults(),
	}
	s.sweeper = startSweeper(s.opts.CleanupInterval, s.opts.Logger, s.ExpireReservations)
	return s
}

func (s *MemoryStore) ExpireReservations(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	expired := 0
	for id, r := range s.reservations {
		switch {
		case r.Status == domain.StatusReserved && r.IsExpired(now):
			s.settle(r, domain.StatusExpired, now)
			s.returnHeld(r, now)
			expired++
		case r.Status != domain.StatusReserved && now.Sub(r.SettledAt) > s.opts.SettledRetention:
			delete(s.reservations, id)
		}
	}
	return expired, nil
}

func (s *MemoryStore) ListStock(_ context.Context) ([]domain.StockInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockInfo, 0, len(s.stocks))
	for _, stock := range s.stocks {
		result = append(result, *stock)
	}
	slices.SortFunc(result, func(a, b domain.StockInfo) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return result, nil
}

func (s *MemoryStore) GetStock(_ context.Context, productIDs []string) ([]domain.StockInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockInfo, 0, len(productIDs))
	for _, id := range productIDs {
		if stock, exists := s.stocks[id]; exists {
			result = append(result, *stock)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetAvailable(_ context.Context, productID string) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock, exists := s.stocks[productID]
	if !exists {
		return 0, ErrProductNotFound
	}
	return stock.Available(), nil
}

func (s *MemoryStore) Reserve(_ context.Context, checkoutID, productID string, quantity int32) (*domain.Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, exists := s.stocks[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	if stock.Available() < quantity {
		return nil, &InsufficientStockError{ProductID: productID, Requested: quantity, Available: stock.Available()}
	}

	now := s.opts.Now()
	stock.Reserved += quantity
	stock.LastUpdated = now

	reservation := &domain.Reservation{
		ID:         uuid.New().String(),
		CheckoutID: checkoutID,
		ProductID:  productID,
		Quantity:   quantity,
		Status:     domain.StatusReserved,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.ReservationTTL),
	}
	s.reservations[reservation.ID] = reservation

	cp := *reservation
	return &cp, nil
}

func (s *MemoryStore) Commit(_ context.Context, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}

	switch reservation.Status {
	case domain.StatusConfirmed:
		return nil
	case domain.StatusExpired:
		return ErrReservationExpired
	case domain.StatusReleased:
		return ErrInvalidStatus
	}

	now := s.opts.Now()
	if reservation.IsExpired(now) {
		s.settle(reservation, domain.StatusExpired, now)
		s.returnHeld(reservation, now)
		return ErrReservationExpired
	}

	stock := s.stocks[reservation.ProductID]
	stock.Total -= reservation.Quantity
	stock.Reserved -= reservation.Quantity
	stock.LastUpdated = now

	s.settle(reservation, domain.StatusConfirmed, now)
	return nil
}

func (s *MemoryStore) Release(_ context.Context, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}

	switch reservation.Status {
	case domain.StatusReleased, domain.StatusExpired:
		return nil
	case domain.StatusConfirmed:
		return ErrInvalidStatus
	}

	now := s.opts.Now()
	s.returnHeld(reservation, now)
	s.settle(reservation, domain.StatusReleased, now)
	return nil
}

func (s *MemoryStore) Restock(_ context.Context, productID string, quantity int32) (domain.StockInfo, error) {
	if quantity <= 0 {
		return domain.StockInfo{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, exists := s.stocks[productID]
	if !exists {
		stock = &domain.StockInfo{ProductID: productID}
		s.stocks[productID] = stock
	}
	stock.Total += quantity
	stock.LastUpdated = s.opts.Now()
	return *stock, nil
}

func (s *MemoryStore) SetStock(_ context.Context, productID string, quantity int32) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, exists := s.stocks[productID]
	if !exists {
		stock = &domain.StockInfo{ProductID: productID}
		s.stocks[productID] = stock
	}
	if quantity < stock.Reserved {
		return belowReserved(quantity, stock.Reserved)
	}
	stock.Total = quantity
	stock.LastUpdated = s.opts.Now()
	return nil
}

// Close stops the background sweep and waits for it to finish
func (s *MemoryStore) Close() error {
	s.sweeper.Stop()
	return nil
}

// settle must be called with s.mu held.
func (s *MemoryStore) settle(r *domain.Reservation, status domain.ReservationStatus, now time.Time) {
	r.Status = status
	r.SettledAt = now
}

// returnHeld must be called with s.mu held.
func (s *MemoryStore) returnHeld(r *domain.Reservation, now time.Time) {
	if stock, ok := s.stocks[r.ProductID]; ok {
		stock.Reserved -= r.Quantity
		if stock.Reserved < 0 {
			stock.Reserved = 0
		}
		stock.LastUpdated = now
	}
}
