package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

const recoverBatch = 100

// abandonGrace is added to the hold timeout before an unfinished session
// owned by no process is considered abandoned.
const abandonGrace = time.Minute

// Recover runs one reconciliation pass followed by one expiry pass.
func (s *Service) Recover(ctx context.Context) error {
	_, rerr := s.Reconcile(ctx, recoverBatch)
	_, eerr := s.ExpireStale(ctx, recoverBatch)
	return errors.Join(rerr, eerr)
}

// Reconcile retries the commit of checkouts whose payment was captured but
// whose stock commit or transaction record was never acknowledged. It returns
// how many were completed.
func (s *Service) Reconcile(ctx context.Context, limit int) (int, error) {
	sessions, err := s.store.ListReconcilable(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list reconcilable sessions: %w", err)
	}

	completed := 0
	for _, session := range sessions {
		if err := session.ResumeCommit(s.now()); err != nil {
			s.logger.WarnContext(ctx, "cannot resume commit", "checkout_id", session.ID, "error", err)
			continue
		}
		if err := s.complete(ctx, session, false); err != nil {
			continue
		}
		s.logger.InfoContext(ctx, "checkout reconciled", "checkout_id", session.ID, "payment_reference", session.PaymentReference)
		completed++
	}
	return completed, nil
}

// ExpireStale closes sessions left unfinished by a process that stopped
// driving them. Holds are released unless the payment was captured, in which
// case the session is handed to the reconciler.
func (s *Service) ExpireStale(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-(s.cfg.HoldTimeout + abandonGrace))
	sessions, err := s.store.ListSessions(ctx, []domain.CheckoutStatus{
		domain.CheckoutStatusIdle,
		domain.CheckoutStatusValidating,
		domain.CheckoutStatusAwaitingPayment,
		domain.CheckoutStatusCommitting,
	}, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	expired := 0
	for _, session := range sessions {
		if s.isRunning(session.ID) {
			continue
		}
		now := s.now()

		var ferr error
		switch session.Status {
		case domain.CheckoutStatusCommitting:
			ferr = session.Fail(domain.FailureCommitError, "abandoned while committing", now)
			s.logger.ErrorContext(ctx, "checkout abandoned after payment capture",
				"checkout_id", session.ID, "payment_reference", session.PaymentReference, "reconcile", true)
		case domain.CheckoutStatusAwaitingPayment:
			s.releaseInventory(ctx, session)
			ferr = session.Fail(domain.FailurePaymentCancelled, "payment hold expired", now)
		case domain.CheckoutStatusIdle:
			if ferr = session.TransitionTo(domain.CheckoutStatusValidating, now); ferr == nil {
				ferr = session.Fail(domain.FailureUnavailable, "abandoned before validation", now)
			}
		default:
			s.releaseInventory(ctx, session)
			ferr = session.Fail(domain.FailureUnavailable, "abandoned during validation", now)
		}
		if ferr != nil {
			s.logger.WarnContext(ctx, "cannot expire session", "checkout_id", session.ID, "error", ferr)
			continue
		}
		if err := s.save(ctx, session); err != nil {
			s.logger.WarnContext(ctx, "failed to store expired session", "checkout_id", session.ID, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "stale checkout expired", "checkout_id", session.ID, "reason", session.FailureReason)
		expired++
	}
	return expired, nil
}

// SettleCaptured completes a checkout whose payment was confirmed by the
// gateway after the process waiting for it went away.
func (s *Service) SettleCaptured(ctx context.Context, reference, paymentReference string, amountMinor int64) error {
	session, err := s.store.GetSessionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if s.isRunning(session.ID) {
		return nil
	}

	logAttrs := []any{"checkout_id", session.ID, "reference", reference, "payment_reference", paymentReference}
	if session.Status != domain.CheckoutStatusAwaitingPayment {
		if session.Status == domain.CheckoutStatusCompleted || session.NeedsReconciliation() {
			return nil
		}
		s.logger.ErrorContext(ctx, "payment captured for a closed checkout",
			append(logAttrs, "status", session.Status, "reason", session.FailureReason, "reconcile", true)...)
		return fmt.Errorf("%w: checkout %s is %s", domain.ErrIllegalTransition, session.ID, session.Status)
	}
	if want := pricing.ToMinorUnits(session.Totals.Total); want != amountMinor {
		s.logger.ErrorContext(ctx, "captured amount does not match checkout total",
			append(logAttrs, "expected", want, "got", amountMinor, "reconcile", true)...)
		return fmt.Errorf("%w: amount mismatch", domain.ErrPaymentFailed)
	}

	session.PaymentReference = paymentReference
	if err := session.TransitionTo(domain.CheckoutStatusCommitting, s.now()); err != nil {
		return err
	}
	if err := s.save(ctx, session); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "settling orphaned payment", logAttrs...)
	return s.complete(context.WithoutCancel(ctx), session, true)
}
