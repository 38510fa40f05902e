package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

// Checkout runs a checkout to completion and returns the final session. The
// returned error names the failure (insufficient stock, cancelled or failed
// payment, commit error). A request whose idempotency key was already used
// returns the existing session without running again.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	session, existing, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing {
		return session, nil
	}

	s.track(session.ID)
	defer s.untrack(session.ID)

	err = s.run(ctx, session, nil)
	snap := snapshot(session)
	return &snap, err
}

// Begin starts a checkout in the background and returns once the session
// awaits payment with an authorization URL, or has already failed. If
// neither happens within the ready timeout the latest stored session is
// returned.
func (s *Service) Begin(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	session, existing, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing {
		return session, nil
	}

	ready := make(chan domain.CheckoutSession, 1)
	var once sync.Once
	notify := func(snap domain.CheckoutSession) {
		once.Do(func() { ready <- snap })
	}

	id := session.ID
	runCtx := context.WithoutCancel(ctx)
	s.track(id)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.untrack(id)
		if err := s.run(runCtx, session, notify); err != nil {
			s.logger.DebugContext(runCtx, "checkout ended without completing", "checkout_id", id, "error", err)
		}
	}()

	timer := time.NewTimer(s.cfg.ReadyTimeout)
	defer timer.Stop()
	select {
	case snap := <-ready:
		return &snap, nil
	case <-timer.C:
		s.logger.WarnContext(ctx, "checkout not ready in time", "checkout_id", id, "timeout", s.cfg.ReadyTimeout)
		return s.store.GetSession(ctx, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return s.store.GetSession(ctx, id)
}

// Cancel abandons the payment of the checkout with the given reference. A
// checkout driven by this process is cancelled through the gateway and
// releases its own reservations; an orphaned one awaiting payment is failed
// and released here.
func (s *Service) Cancel(ctx context.Context, reference string) (*domain.CheckoutSession, error) {
	if s.gateway.Cancel(reference) {
		s.logger.InfoContext(ctx, "checkout payment cancelled", "reference", reference)
		return s.store.GetSessionByReference(ctx, reference)
	}

	session, err := s.store.GetSessionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}
	if session.Status != domain.CheckoutStatusAwaitingPayment || s.isRunning(session.ID) {
		return nil, fmt.Errorf("%w: %s", ErrNotRunning, session.Status)
	}

	s.releaseInventory(ctx, session)
	if err := session.Fail(domain.FailurePaymentCancelled, "cancelled by customer", s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) prepare(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, bool, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	} else {
		existing, err := s.store.GetSessionByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			s.logger.InfoContext(ctx, "duplicate checkout request",
				"idempotency_key", req.IdempotencyKey, "checkout_id", existing.ID, "status", existing.Status)
			return existing, true, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	email := req.Email
	if email == "" && req.User != nil {
		email = req.User.Email
	}
	if email == "" {
		return nil, false, ErrEmailRequired
	}

	cart, err := s.carts.GetCart(ctx, req.CartID)
	if err != nil {
		return nil, false, fmt.Errorf("load cart %s: %w", req.CartID, err)
	}
	if cart.IsEmpty() {
		return nil, false, domain.ErrEmptyCart
	}

	isMember, discount, err := s.discounts.MemberDiscount(ctx, req.User)
	if err != nil {
		return nil, false, fmt.Errorf("resolve member discount: %w", err)
	}
	totals, err := s.cfg.Policy.ComputeTotals(cart.PricingLines(), discount)
	if err != nil {
		return nil, false, err
	}

	lines := make([]domain.CheckoutLine, len(cart.Items))
	for i, item := range cart.Items {
		lines[i] = domain.CheckoutLine{LineItem: item}
	}

	now := s.now()
	session := &domain.CheckoutSession{
		ID:              uuid.NewString(),
		IdempotencyKey:  req.IdempotencyKey,
		CartID:          cart.ID,
		Email:           email,
		IsMember:        isMember,
		Status:          domain.CheckoutStatusIdle,
		Reference:       newReference(now),
		Lines:           lines,
		DiscountPercent: discount,
		Totals:          totals,
		Currency:        s.cfg.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.User != nil {
		session.UserID = req.User.ID
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			existing, gerr := s.store.GetSessionByIdempotencyKey(ctx, req.IdempotencyKey)
			if gerr != nil {
				return nil, false, fmt.Errorf("failed to check idempotency: %w", gerr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout started",
		"checkout_id", session.ID,
		"reference", session.Reference,
		"cart_id", session.CartID,
		"total", session.Totals.Total.StringFixed(2),
		"discount_percent", discount.String(),
	)
	return session, false, nil
}

func (s *Service) run(ctx context.Context, session *domain.CheckoutSession, notify func(domain.CheckoutSession)) error {
	if notify == nil {
		notify = func(domain.CheckoutSession) {}
	}
	defer func() { notify(snapshot(session)) }()

	if err := session.TransitionTo(domain.CheckoutStatusValidating, s.now()); err != nil {
		return err
	}
	if err := s.save(ctx, session); err != nil {
		return err
	}

	if err := s.reserveInventory(ctx, session); err != nil {
		return err
	}
	if err := s.processPayment(ctx, session, notify); err != nil {
		return err
	}
	return s.complete(context.WithoutCancel(ctx), session, true)
}

func (s *Service) save(ctx context.Context, session *domain.CheckoutSession) error {
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("update checkout session %s: %w", session.ID, err)
	}
	return nil
}

// saveDetached persists a state change that must survive the caller giving
// up.
func (s *Service) saveDetached(ctx context.Context, session *domain.CheckoutSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.save(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist checkout session",
			"checkout_id", session.ID, "status", session.Status, "error", err)
	}
}

func newReference(now time.Time) string {
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// snapshot copies the session so it can be handed to another goroutine.
func snapshot(s *domain.CheckoutSession) domain.CheckoutSession {
	c := *s
	c.Lines = append([]domain.CheckoutLine(nil), s.Lines...)
	if s.Shortage != nil {
		shortage := *s.Shortage
		c.Shortage = &shortage
	}
	return c
}
