package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Images      []string        `json:"images,omitempty"`
	Description string          `json:"description"`
	Sizes       []string        `json:"sizes,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	IsNew       bool            `json:"is_new"`
}

// Offers reports whether the variant is sold. Products that declare no sizes
// or colors accept any value for that dimension.
func (p *Product) Offers(v Variant) bool {
	if v.Size != "" && len(p.Sizes) > 0 && !slices.Contains(p.Sizes, v.Size) {
		return false
	}
	if v.Color != "" && len(p.Colors) > 0 && !slices.Contains(p.Colors, v.Color) {
		return false
	}
	return true
}
