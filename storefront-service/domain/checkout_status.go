package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle            CheckoutStatus = "IDLE"
	CheckoutStatusValidating      CheckoutStatus = "VALIDATING"
	CheckoutStatusAwaitingPayment CheckoutStatus = "AWAITING_PAYMENT"
	CheckoutStatusCommitting      CheckoutStatus = "COMMITTING"
	CheckoutStatusCompleted       CheckoutStatus = "COMPLETED"
	CheckoutStatusFailed          CheckoutStatus = "FAILED"
)

// FailureReason qualifies CheckoutStatusFailed.
type FailureReason string

const (
	FailureNone              FailureReason = ""
	FailureInsufficientStock FailureReason = "INSUFFICIENT_STOCK"
	FailurePaymentCancelled  FailureReason = "PAYMENT_CANCELLED"
	FailurePaymentError      FailureReason = "PAYMENT_ERROR"
	// FailureUnavailable covers validation that could not reach the ledger.
	FailureUnavailable FailureReason = "INVENTORY_UNAVAILABLE"
	// FailureCommitError means the payment was captured but the inventory
	// commit was not acknowledged. The session stays open for reconciliation.
	FailureCommitError FailureReason = "COMMIT_ERROR"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:            {CheckoutStatusValidating},
	CheckoutStatusValidating:      {CheckoutStatusAwaitingPayment, CheckoutStatusFailed},
	CheckoutStatusAwaitingPayment: {CheckoutStatusCommitting, CheckoutStatusFailed},
	CheckoutStatusCommitting:      {CheckoutStatusCompleted, CheckoutStatusFailed},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// failureFor lists which failure reasons each state may end in.
var failureFor = map[CheckoutStatus][]FailureReason{
	CheckoutStatusValidating:      {FailureInsufficientStock, FailureUnavailable},
	CheckoutStatusAwaitingPayment: {FailurePaymentCancelled, FailurePaymentError},
	CheckoutStatusCommitting:      {FailureCommitError},
}

// CanFailWith reports whether a session in status from may fail for reason.
func CanFailWith(from CheckoutStatus, reason FailureReason) bool {
	for _, r := range failureFor[from] {
		if r == reason {
			return true
		}
	}
	return false
}
