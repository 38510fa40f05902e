package domain

import (
	"fmt"
	"time"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/shopspring/decimal"
)

// CheckoutLine is a cart line frozen at checkout time together with the
// inventory hold backing it.
type CheckoutLine struct {
	LineItem
	ReservationID string `json:"reservation_id,omitempty"`
}

type CheckoutRequest struct {
	CartID         string
	User           *User
	Email          string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID             string         `json:"id"`
	IdempotencyKey string         `json:"idempotency_key"`
	CartID         string         `json:"cart_id"`
	UserID         string         `json:"user_id,omitempty"`
	Email          string         `json:"email"`
	IsMember       bool           `json:"is_member"`
	Status         CheckoutStatus `json:"status"`
	FailureReason  FailureReason  `json:"failure_reason,omitempty"`
	FailureDetail  string         `json:"failure_detail,omitempty"`

	// Reference is generated by the orchestrator and sent to the payment
	// gateway. It is the idempotency key for charging and for reconciliation.
	Reference        string `json:"reference"`
	PaymentReference string `json:"payment_reference,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`

	Lines           []CheckoutLine          `json:"lines"`
	DiscountPercent decimal.Decimal         `json:"discount_percent"`
	Totals          pricing.Totals          `json:"totals"`
	Currency        string                  `json:"currency"`
	Shortage        *InsufficientStockError `json:"shortage,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *CheckoutSession) TransitionTo(to CheckoutStatus, now time.Time) error {
	if to == CheckoutStatusFailed {
		return fmt.Errorf("%w: use Fail to move to %s", ErrIllegalTransition, to)
	}
	if !CanTransitionTo(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

func (s *CheckoutSession) Fail(reason FailureReason, detail string, now time.Time) error {
	if !CanFailWith(s.Status, reason) {
		return fmt.Errorf("%w: %s cannot fail with %s", ErrIllegalTransition, s.Status, reason)
	}
	s.Status = CheckoutStatusFailed
	s.FailureReason = reason
	s.FailureDetail = detail
	s.UpdatedAt = now
	return nil
}

// NeedsReconciliation reports a captured payment whose stock commit was not
// acknowledged.
func (s *CheckoutSession) NeedsReconciliation() bool {
	return s.Status == CheckoutStatusFailed && s.FailureReason == FailureCommitError
}

// ResumeCommit reopens a session that failed with FailureCommitError so the
// commit can be retried.
func (s *CheckoutSession) ResumeCommit(now time.Time) error {
	if !s.NeedsReconciliation() {
		return fmt.Errorf("%w: %s(%s) cannot resume commit", ErrIllegalTransition, s.Status, s.FailureReason)
	}
	s.Status = CheckoutStatusCommitting
	s.FailureReason = FailureNone
	s.FailureDetail = ""
	s.UpdatedAt = now
	return nil
}

func (s *CheckoutSession) ReservationIDs() []string {
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if l.ReservationID != "" {
			ids = append(ids, l.ReservationID)
		}
	}
	return ids
}

func (s *CheckoutSession) Items() []LineItem {
	items := make([]LineItem, len(s.Lines))
	for i, l := range s.Lines {
		items[i] = l.LineItem
	}
	return items
}
