package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/inventory"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

// complete commits the held stock and records the transaction. Any failure
// leaves the session in FAILED(COMMIT_ERROR) with its reservations intact so
// the reconciler can finish it.
func (s *Service) complete(ctx context.Context, session *domain.CheckoutSession, clearCart bool) error {
	if err := s.commitReservations(ctx, session); err != nil {
		return s.failCommit(ctx, session, err)
	}

	done := snapshot(session)
	now := s.now()
	if err := done.TransitionTo(domain.CheckoutStatusCompleted, now); err != nil {
		return err
	}
	tx := domain.NewTransaction(uuid.NewString(), &done, s.gateway.Name(), now)
	event, err := completedEvent(tx)
	if err != nil {
		return s.failCommit(ctx, session, err)
	}

	err = s.store.CompleteCheckout(ctx, &done, tx, event)
	if errors.Is(err, repository.ErrAlreadyRecorded) {
		s.logger.InfoContext(ctx, "transaction already recorded", "checkout_id", session.ID)
	} else if err != nil {
		return s.failCommit(ctx, session, fmt.Errorf("record transaction: %w", err))
	}
	*session = done

	if clearCart {
		if err := s.carts.ClearCart(ctx, session.CartID); err != nil {
			s.logger.WarnContext(ctx, "failed to clear cart after checkout", "cart_id", session.CartID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "checkout completed",
		"checkout_id", session.ID,
		"reference", session.Reference,
		"payment_reference", session.PaymentReference,
		"total", session.Totals.Total.StringFixed(2),
	)
	return nil
}

// commitReservations commits every line. A hold that expired while the
// shopper was paying is taken again before committing.
func (s *Service) commitReservations(ctx context.Context, session *domain.CheckoutSession) error {
	for i := range session.Lines {
		line := &session.Lines[i]

		err := inventory.ErrReservationClosed
		if line.ReservationID != "" {
			err = s.inventory.Commit(ctx, line.ReservationID)
		}
		if errors.Is(err, inventory.ErrReservationClosed) {
			s.logger.WarnContext(ctx, "reservation closed before commit, reserving again",
				"checkout_id", session.ID, "product_id", line.ProductID, "reservation_id", line.ReservationID)
			id, rerr := s.inventory.Reserve(ctx, session.ID, line.ProductID, line.Quantity)
			if rerr != nil {
				return fmt.Errorf("reserve %s again: %w", line.ProductID, rerr)
			}
			line.ReservationID = id
			err = s.inventory.Commit(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("commit %s: %w", line.ReservationID, err)
		}
	}
	return nil
}

func (s *Service) failCommit(ctx context.Context, session *domain.CheckoutSession, cause error) error {
	if err := session.Fail(domain.FailureCommitError, cause.Error(), s.now()); err != nil {
		return err
	}
	s.saveDetached(ctx, session)

	s.logger.ErrorContext(ctx, "checkout commit failed after payment capture",
		"checkout_id", session.ID,
		"reference", session.Reference,
		"payment_reference", session.PaymentReference,
		"reconcile", true,
		"error", cause,
	)
	return fmt.Errorf("%w: %w", domain.ErrCommitFailed, cause)
}

type completedPayload struct {
	CheckoutID       string            `json:"checkout_id"`
	Reference        string            `json:"reference"`
	UserID           string            `json:"user_id,omitempty"`
	Email            string            `json:"email"`
	Items            []domain.LineItem `json:"items"`
	Total            string            `json:"total"`
	Currency         string            `json:"currency"`
	PaymentReference string            `json:"payment_reference"`
	CompletedAt      string            `json:"completed_at"`
}

func completedEvent(tx *domain.Transaction) (*repository.OutboxEvent, error) {
	payload, err := json.Marshal(completedPayload{
		CheckoutID:       tx.CheckoutID,
		Reference:        tx.Reference,
		UserID:           tx.UserID,
		Email:            tx.Email,
		Items:            tx.Items,
		Total:            tx.Total.StringFixed(2),
		Currency:         tx.Currency,
		PaymentReference: tx.PaymentReference,
		CompletedAt:      tx.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout payload: %w", err)
	}
	return &repository.OutboxEvent{
		AggregateID: tx.CheckoutID,
		EventType:   repository.EventCheckoutCompleted,
		Payload:     payload,
	}, nil
}
