package checkout

import (
	"context"
	"fmt"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/payment"
)

// processPayment charges the session total and suspends until the gateway
// reports an outcome. Running out of hold time counts as cancellation.
func (s *Service) processPayment(ctx context.Context, session *domain.CheckoutSession, notify func(domain.CheckoutSession)) error {
	var res payment.ChargeResult
	if session.Totals.Total.IsZero() {
		res = payment.ChargeResult{Status: payment.StatusSuccess, PaymentReference: "free:" + session.Reference}
		notify(snapshot(session))
	} else {
		payCtx, cancel := context.WithTimeout(ctx, s.cfg.HoldTimeout)
		defer cancel()

		var err error
		res, err = s.gateway.Charge(payCtx, payment.ChargeRequest{
			Amount:    session.Totals.Total,
			Currency:  session.Currency,
			Email:     session.Email,
			Reference: session.Reference,
			OnAuthorize: func(url string) {
				session.AuthorizationURL = url
				session.UpdatedAt = s.now()
				if err := s.save(ctx, session); err != nil {
					s.logger.WarnContext(ctx, "failed to store authorization url", "checkout_id", session.ID, "error", err)
				}
				notify(snapshot(session))
			},
		})
		if err != nil {
			return s.failPayment(ctx, session, domain.FailurePaymentError, err.Error(),
				fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err))
		}
	}

	switch res.Status {
	case payment.StatusSuccess:
		session.PaymentReference = res.PaymentReference
		if err := session.TransitionTo(domain.CheckoutStatusCommitting, s.now()); err != nil {
			return err
		}
		s.saveDetached(ctx, session)
		s.logger.InfoContext(ctx, "payment captured",
			"checkout_id", session.ID, "reference", session.Reference, "payment_reference", res.PaymentReference)
		return nil
	case payment.StatusCancelled:
		return s.failPayment(ctx, session, domain.FailurePaymentCancelled, res.Reason, domain.ErrPaymentCancelled)
	default:
		return s.failPayment(ctx, session, domain.FailurePaymentError, res.Reason,
			fmt.Errorf("%w: %s", domain.ErrPaymentFailed, res.Reason))
	}
}

func (s *Service) failPayment(ctx context.Context, session *domain.CheckoutSession, reason domain.FailureReason, detail string, cause error) error {
	s.releaseInventory(ctx, session)
	if err := session.Fail(reason, detail, s.now()); err != nil {
		return err
	}
	s.saveDetached(ctx, session)

	s.logger.InfoContext(ctx, "checkout payment not completed",
		"checkout_id", session.ID, "reference", session.Reference, "reason", reason, "detail", detail)
	return cause
}
