package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/shopspring/decimal"
)

// GuestCartPrefix marks cart ids issued to anonymous shoppers. It is never a
// valid user id.
const GuestCartPrefix = "guest-"

// NewGuestCartID returns an unguessable id for an anonymous cart.
func NewGuestCartID() string {
	return GuestCartPrefix + uuid.NewString()
}

// IsGuestCartID reports whether id has the shape of an issued guest cart id.
func IsGuestCartID(id string) bool {
	rest, ok := strings.CutPrefix(id, GuestCartPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

type Variant struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variant   Variant         `json:"variant"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
}

// SameLine reports whether two lines share the identity key
// (product, size, color).
func (l LineItem) SameLine(productID string, v Variant) bool {
	return l.ProductID == productID && l.Variant == v
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the aggregate behind a shopper's basket. Line order is insertion
// order. Version increases on every persisted mutation.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id,omitempty"`
	Items     []LineItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart(id string, now time.Time) *Cart {
	return &Cart{ID: id, Items: []LineItem{}, CreatedAt: now, UpdatedAt: now}
}

// AddItem merges into the line with the same identity key or appends a new one.
func (c *Cart) AddItem(p *Product, quantity int, v Variant) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if !p.Offers(v) {
		return fmt.Errorf("%w: %s size=%q color=%q", ErrInvalidVariant, p.ID, v.Size, v.Color)
	}

	for i := range c.Items {
		if c.Items[i].SameLine(p.ID, v) {
			c.Items[i].Quantity += quantity
			return nil
		}
	}

	c.Items = append(c.Items, LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
		Variant:   v,
		Image:     p.Image,
		Category:  p.Category,
	})
	return nil
}

// UpdateQuantity replaces a line's quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(index, quantity int) error {
	if index < 0 || index >= len(c.Items) {
		return ErrIndexOutOfRange
	}
	if quantity <= 0 {
		return c.RemoveItem(index)
	}
	c.Items[index].Quantity = quantity
	return nil
}

func (c *Cart) RemoveItem(index int) error {
	if index < 0 || index >= len(c.Items) {
		return ErrIndexOutOfRange
	}
	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Items = []LineItem{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, len(c.Items))
	for i, item := range c.Items {
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	return lines
}

// Subtotal is the undiscounted sum, rounded for display.
func (c *Cart) Subtotal() decimal.Decimal {
	return pricing.Subtotal(c.PricingLines()).Round(2)
}

// Totals prices the cart with a caller-supplied discount. The cart holds no
// discount state of its own.
func (c *Cart) Totals(discountPercent decimal.Decimal) (pricing.Totals, error) {
	return pricing.ComputeTotals(c.PricingLines(), discountPercent)
}

func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
