package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/events"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
)

// CartIDHeader carries a guest cart id. The server issues it on the first
// cart request and the client echoes it back.
const CartIDHeader = "X-Cart-ID"

const heartbeatInterval = 15 * time.Second

type Carts interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID, userID, productID string, quantity int, v domain.Variant) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, cartID string, index, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, cartID string, index int) (*domain.Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

type Discounts interface {
	DiscountPercent(ctx context.Context, user *domain.User) (decimal.Decimal, error)
}

type CartEvents interface {
	Subscribe(ctx context.Context, cartID string) <-chan events.CartChanged
}

type CartHandler struct {
	carts     Carts
	discounts Discounts
	events    CartEvents
	policy    pricing.Policy
	timeout   time.Duration
	logger    *slog.Logger
}

func NewCartHandler(carts Carts, discounts Discounts, ev CartEvents, policy pricing.Policy, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, discounts: discounts, events: ev, policy: policy, timeout: timeout, logger: logger}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartTotalsDTO struct {
	CartID          string          `json:"cart_id"`
	ItemCount       int             `json:"item_count"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	pricing.Totals
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDOrIssue(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, cartID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDOrIssue(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var userID string
	if u := membership.CurrentUser(r.Context()); u != nil {
		userID = u.ID
	}
	cart, err := h.carts.AddItem(ctx, cartID, userID, req.ProductID, req.Quantity, domain.Variant{Size: req.Size, Color: req.Color})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

// UpdateQuantity sets the quantity of the line at {index}. Zero or less
// removes it.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDFromRequest(w, r)
	if !ok {
		return
	}
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	cart, err := h.carts.UpdateQuantity(ctx, cartID, index, req.Quantity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDFromRequest(w, r)
	if !ok {
		return
	}
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, cartID, index)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.carts.ClearCart(ctx, cartID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Totals prices the cart with the caller's member discount and the shop's
// shipping policy.
func (h *CartHandler) Totals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDFromRequest(w, r)
	if !ok {
		return
	}

	discount, err := h.discounts.DiscountPercent(ctx, membership.CurrentUser(r.Context()))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	cart, err := h.carts.GetCart(ctx, cartID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	totals, err := h.policy.ComputeTotals(cart.PricingLines(), discount)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CartTotalsDTO{
		CartID:          cart.ID,
		ItemCount:       cart.ItemCount(),
		DiscountPercent: discount,
		Totals:          totals,
	})
}

// Events streams cart changes as server-sent events until the client goes
// away.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	cartID, ok := cartIDFromRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	ch := h.events.Subscribe(r.Context(), cartID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.ErrorContext(r.Context(), "failed to encode cart event", "cart_id", cartID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// cartIDFromRequest resolves the cart the caller may touch. Authenticated
// callers always get their own cart and X-Cart-ID is ignored. Guests must
// present an id this server issued.
func cartIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if u := membership.CurrentUser(r.Context()); u != nil {
		return u.ID, true
	}
	id := r.Header.Get(CartIDHeader)
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing_cart_id", "X-Cart-ID header or authentication is required")
		return "", false
	}
	if !domain.IsGuestCartID(id) {
		respondError(w, http.StatusBadRequest, "invalid_cart_id", "X-Cart-ID is not an issued guest cart id")
		return "", false
	}
	return id, true
}

// cartIDOrIssue is cartIDFromRequest, except that a guest without a cart is
// issued one. The new id is returned in the X-Cart-ID response header.
func cartIDOrIssue(w http.ResponseWriter, r *http.Request) (string, bool) {
	if membership.CurrentUser(r.Context()) == nil && r.Header.Get(CartIDHeader) == "" {
		id := domain.NewGuestCartID()
		w.Header().Set(CartIDHeader, id)
		return id, true
	}
	return cartIDFromRequest(w, r)
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		respondError(w, http.StatusBadRequest, "invalid_index", "index must be a non-negative integer")
		return 0, false
	}
	return index, true
}
