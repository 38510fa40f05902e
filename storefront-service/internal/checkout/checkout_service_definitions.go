// Package checkout runs a cart through reservation, payment and commit,
// keeping the session in a persisted state machine.
package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/payment"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.CheckoutSession) error
	UpdateSession(ctx context.Context, s *domain.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error)
	GetSessionByReference(ctx context.Context, reference string) (*domain.CheckoutSession, error)
	ListSessions(ctx context.Context, statuses []domain.CheckoutStatus, updatedBefore time.Time, limit int) ([]*domain.CheckoutSession, error)
	ListReconcilable(ctx context.Context, limit int) ([]*domain.CheckoutSession, error)
	CompleteCheckout(ctx context.Context, s *domain.CheckoutSession, t *domain.Transaction, event *repository.OutboxEvent) error
}

type Inventory interface {
	Reserve(ctx context.Context, checkoutID, productID string, quantity int) (string, error)
	Commit(ctx context.Context, reservationID string) error
	Release(ctx context.Context, reservationID string) error
}

type Carts interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

// Discounts reports whether the caller is an active member and the rate
// they pay. A member may pay a zero rate.
type Discounts interface {
	MemberDiscount(ctx context.Context, user *domain.User) (bool, decimal.Decimal, error)
}

type Config struct {
	Currency string
	Policy   pricing.Policy
	// HoldTimeout bounds the wait for the payment outcome.
	HoldTimeout time.Duration
	// ReadyTimeout bounds how long Begin waits for the session to settle
	// into AWAITING_PAYMENT.
	ReadyTimeout time.Duration
}

type Service struct {
	store     SessionStore
	inventory Inventory
	gateway   payment.Gateway
	carts     Carts
	discounts Discounts
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	// running holds the ids of sessions driven by this process.
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

func NewService(store SessionStore, inv Inventory, gateway payment.Gateway, carts Carts, discounts Discounts, cfg Config, logger *slog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "GHS"
	}
	if cfg.HoldTimeout <= 0 {
		cfg.HoldTimeout = 10 * time.Minute
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	return &Service{
		store:     store,
		inventory: inv,
		gateway:   gateway,
		carts:     carts,
		discounts: discounts,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		running:   make(map[string]struct{}),
	}
}

// Wait blocks until every checkout started by Begin has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[id] = struct{}{}
}

func (s *Service) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

func (s *Service) isRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}
