// Package pricing computes cart totals. Amounts are carried at full precision
// and rounded half-up to two decimal places only when Totals are produced.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidDiscount = errors.New("discount percent must be between 0 and 100")

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Line is the priced part of a cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the output of ComputeTotals. Tax is always zero because catalog
// prices are tax-inclusive; it is reported for display.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Shipping       decimal.Decimal `json:"shipping"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

// Policy describes shipping charges. The zero value ships for free.
type Policy struct {
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultPolicy matches the shop: free shipping on every order.
var DefaultPolicy = Policy{}

// ComputeTotals prices lines with DefaultPolicy.
func ComputeTotals(lines []Line, discountPercent decimal.Decimal) (Totals, error) {
	return DefaultPolicy.ComputeTotals(lines, discountPercent)
}

func (p Policy) ComputeTotals(lines []Line, discountPercent decimal.Decimal) (Totals, error) {
	if err := ValidateDiscount(discountPercent); err != nil {
		return Totals{}, err
	}

	subtotal := Subtotal(lines)
	discount := subtotal.Mul(discountPercent).Div(hundred)
	shipping := p.shipping(subtotal.Sub(discount))

	total := subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		total = zero
	}

	return Totals{
		Subtotal:       round(subtotal),
		DiscountAmount: round(discount),
		Shipping:       round(shipping),
		Tax:            round(zero),
		Total:          round(total),
	}, nil
}

// Subtotal returns the unrounded sum of unit price times quantity.
func Subtotal(lines []Line) decimal.Decimal {
	sum := zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

func ValidateDiscount(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return fmt.Errorf("%w: got %s", ErrInvalidDiscount, percent.String())
	}
	return nil
}

func (p Policy) shipping(discounted decimal.Decimal) decimal.Decimal {
	if !p.ShippingFee.IsPositive() {
		return zero
	}
	if p.FreeShippingThreshold.IsPositive() && discounted.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return zero
	}
	return p.ShippingFee
}

// ToMinorUnits converts an amount to the smallest currency unit (pesewas,
// cents) as payment gateways expect.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
