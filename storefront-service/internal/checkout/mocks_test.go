package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/inventory"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/payment"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

// memStore keeps sessions, transactions and outbox events in memory with
// the same uniqueness rules as the database.
type memStore struct {
	mu           sync.Mutex
	sessions     map[string]domain.CheckoutSession
	transactions map[string]*domain.Transaction
	events       []*repository.OutboxEvent
	completeErr  error
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     map[string]domain.CheckoutSession{},
		transactions: map[string]*domain.Transaction{},
	}
}

func (m *memStore) CreateSession(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.IdempotencyKey == s.IdempotencyKey {
			return repository.ErrDuplicateKey
		}
	}
	m.sessions[s.ID] = snapshot(s)
	return nil
}

func (m *memStore) UpdateSession(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return domain.ErrNotFound
	}
	m.sessions[s.ID] = snapshot(s)
	return nil
}

func (m *memStore) find(match func(domain.CheckoutSession) bool) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if match(s) {
			c := snapshot(&s)
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	return m.find(func(s domain.CheckoutSession) bool { return s.ID == id })
}

func (m *memStore) GetSessionByIdempotencyKey(_ context.Context, key string) (*domain.CheckoutSession, error) {
	return m.find(func(s domain.CheckoutSession) bool { return s.IdempotencyKey == key })
}

func (m *memStore) GetSessionByReference(_ context.Context, ref string) (*domain.CheckoutSession, error) {
	return m.find(func(s domain.CheckoutSession) bool { return s.Reference == ref })
}

func (m *memStore) ListSessions(_ context.Context, statuses []domain.CheckoutStatus, before time.Time, limit int) ([]*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.CheckoutSession
	for _, s := range m.sessions {
		for _, st := range statuses {
			if s.Status == st && s.UpdatedAt.Before(before) && len(out) < limit {
				c := snapshot(&s)
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

func (m *memStore) ListReconcilable(_ context.Context, limit int) ([]*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.CheckoutSession
	for _, s := range m.sessions {
		if s.NeedsReconciliation() && len(out) < limit {
			c := snapshot(&s)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) CompleteCheckout(_ context.Context, s *domain.CheckoutSession, t *domain.Transaction, ev *repository.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	_, recorded := m.transactions[s.ID]
	if !recorded {
		m.transactions[s.ID] = t
		m.events = append(m.events, ev)
	}
	m.sessions[s.ID] = snapshot(s)
	if recorded {
		return repository.ErrAlreadyRecorded
	}
	return nil
}

func (m *memStore) session(id string) domain.CheckoutSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

type hold struct {
	productID string
	quantity  int
	status    string
}

// fakeLedger mirrors the inventory client's contract: typed shortages,
// idempotent commit, no-op release of released holds.
type fakeLedger struct {
	mu        sync.Mutex
	available map[string]int
	holds     map[string]*hold
	seq       int

	reserveErr  error
	commitErr   error
	closeOnce   bool
	commits     int
	releaseSeen []string
}

func newFakeLedger(stock map[string]int) *fakeLedger {
	return &fakeLedger{available: stock, holds: map[string]*hold{}}
}

func (f *fakeLedger) Reserve(_ context.Context, checkoutID, productID string, qty int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return "", f.reserveErr
	}
	avail, ok := f.available[productID]
	if !ok {
		return "", domain.ErrNotFound
	}
	if avail < qty {
		return "", &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: avail}
	}
	f.available[productID] = avail - qty
	f.seq++
	id := fmt.Sprintf("%s/%s/%d", checkoutID, productID, f.seq)
	f.holds[id] = &hold{productID: productID, quantity: qty, status: "reserved"}
	return id, nil
}

func (f *fakeLedger) Commit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	h, ok := f.holds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if f.closeOnce && h.status == "reserved" {
		f.closeOnce = false
		h.status = "expired"
		f.available[h.productID] += h.quantity
	}
	switch h.status {
	case "confirmed":
		return nil
	case "reserved":
		h.status = "confirmed"
		f.commits++
		return nil
	default:
		return fmt.Errorf("%w: reservation %s", inventory.ErrReservationClosed, h.status)
	}
}

func (f *fakeLedger) Release(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseSeen = append(f.releaseSeen, id)
	h, ok := f.holds[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch h.status {
	case "reserved":
		h.status = "released"
		f.available[h.productID] += h.quantity
		return nil
	case "confirmed":
		return inventory.ErrReservationClosed
	default:
		return nil
	}
}

func (f *fakeLedger) availableOf(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available[productID]
}

func (f *fakeLedger) statusOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.holds[id]; ok {
		return h.status
	}
	return ""
}

type fakeCarts struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	cleared []string
}

func (f *fakeCarts) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return domain.NewCart(id, time.Now()), nil
	}
	return c.Clone(), nil
}

func (f *fakeCarts) ClearCart(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	if c, ok := f.carts[id]; ok {
		c.Clear()
	}
	return nil
}

func (f *fakeCarts) itemCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[id]; ok {
		return c.ItemCount()
	}
	return 0
}

// fixedDiscount treats every authenticated user as an active member.
type fixedDiscount struct {
	percent decimal.Decimal
	err     error
}

func (f fixedDiscount) MemberDiscount(_ context.Context, u *domain.User) (bool, decimal.Decimal, error) {
	if f.err != nil {
		return false, decimal.Zero, f.err
	}
	if u == nil {
		return false, decimal.Zero, nil
	}
	return true, f.percent, nil
}

// stubGateway answers every charge with the same outcome.
type stubGateway struct {
	res     payment.ChargeResult
	err     error
	charges []payment.ChargeRequest
	mu      sync.Mutex
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Charge(_ context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	g.mu.Unlock()
	if g.err != nil {
		return payment.ChargeResult{}, g.err
	}
	if req.OnAuthorize != nil {
		req.OnAuthorize("https://pay.test/" + req.Reference)
	}
	return g.res, nil
}

func (g *stubGateway) Cancel(string) bool { return false }

func (g *stubGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

var errBackend = errors.New("backend unavailable")
