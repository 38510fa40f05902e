package checkout

import (
	"context"
	"errors"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

// reserveInventory holds stock for every line. If any line cannot be held,
// the holds taken so far are released and the session fails.
func (s *Service) reserveInventory(ctx context.Context, session *domain.CheckoutSession) error {
	for i := range session.Lines {
		line := &session.Lines[i]
		id, err := s.inventory.Reserve(ctx, session.ID, line.ProductID, line.Quantity)
		if err != nil {
			s.releaseInventory(ctx, session)
			return s.failValidation(ctx, session, err)
		}
		line.ReservationID = id
	}

	if err := session.TransitionTo(domain.CheckoutStatusAwaitingPayment, s.now()); err != nil {
		s.releaseInventory(ctx, session)
		return err
	}
	if err := s.save(ctx, session); err != nil {
		s.releaseInventory(ctx, session)
		return err
	}
	return nil
}

func (s *Service) failValidation(ctx context.Context, session *domain.CheckoutSession, cause error) error {
	reason := domain.FailureUnavailable
	var shortage *domain.InsufficientStockError
	if errors.As(cause, &shortage) {
		reason = domain.FailureInsufficientStock
		session.Shortage = shortage
	}

	if err := session.Fail(reason, cause.Error(), s.now()); err != nil {
		return err
	}
	s.saveDetached(ctx, session)

	s.logger.WarnContext(ctx, "checkout validation failed",
		"checkout_id", session.ID, "reason", reason, "error", cause)
	return cause
}
