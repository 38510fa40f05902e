package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusCompleted = "completed"
)

// Transaction is the immutable record of a paid checkout.
type Transaction struct {
	ID               string          `json:"id"`
	CheckoutID       string          `json:"checkout_id"`
	Reference        string          `json:"reference"`
	UserID           string          `json:"user_id,omitempty"`
	Email            string          `json:"email"`
	IsMember         bool            `json:"is_member"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	Items            []LineItem      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Shipping         decimal.Decimal `json:"shipping"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference"`
	PaymentStatus    string          `json:"payment_status"`
	CreatedAt        time.Time       `json:"created_at"`
}

func NewTransaction(id string, s *CheckoutSession, paymentMethod string, now time.Time) *Transaction {
	return &Transaction{
		ID:               id,
		CheckoutID:       s.ID,
		Reference:        s.Reference,
		UserID:           s.UserID,
		Email:            s.Email,
		IsMember:         s.IsMember,
		DiscountPercent:  s.DiscountPercent,
		Items:            s.Items(),
		Subtotal:         s.Totals.Subtotal,
		DiscountAmount:   s.Totals.DiscountAmount,
		Shipping:         s.Totals.Shipping,
		Tax:              s.Totals.Tax,
		Total:            s.Totals.Total,
		Currency:         s.Currency,
		PaymentMethod:    paymentMethod,
		PaymentReference: s.PaymentReference,
		PaymentStatus:    PaymentStatusCompleted,
		CreatedAt:        now,
	}
}
