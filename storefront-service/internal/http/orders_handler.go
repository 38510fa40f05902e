package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
)

// Orders reads the transaction history written by completed checkouts.
type Orders interface {
	ListTransactionsByUser(ctx context.Context, userID string) ([]*domain.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
}

type OrdersHandler struct {
	orders  Orders
	timeout time.Duration
}

func NewOrdersHandler(orders Orders, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := membership.CurrentUser(r.Context())
	txs, err := h.orders.ListTransactionsByUser(ctx, user.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

// GET /api/v1/orders/{reference}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.orders.GetTransactionByReference(ctx, chi.URLParam(r, "reference"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	user := membership.CurrentUser(r.Context())
	if tx.UserID != user.ID && !user.IsAdmin {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, tx)
}
