package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the authenticated caller.
type User struct {
	ID      string
	Email   string
	IsAdmin bool
}

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

type Member struct {
	UserID   string       `json:"user_id"`
	Email    string       `json:"email"`
	FullName string       `json:"full_name"`
	Status   MemberStatus `json:"status"`
	IsAdmin  bool         `json:"is_admin"`
	// JoinDiscount is the global rate in force when the member signed up.
	JoinDiscount decimal.Decimal `json:"join_discount"`
	JoinedAt     time.Time       `json:"joined_at"`
}

func (m *Member) IsActive() bool {
	return m != nil && m.Status == MemberStatusActive
}

// DiscountRecord is one version of the global member discount.
type DiscountRecord struct {
	Version            int64           `json:"version"`
	Percentage         decimal.Decimal `json:"percentage"`
	PreviousPercentage decimal.Decimal `json:"previous_percentage"`
	SetBy              string          `json:"set_by"`
	SetAt              time.Time       `json:"set_at"`
}
