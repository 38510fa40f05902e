package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
)

// IdempotencyKeyHeader may carry the key instead of the request body.
const IdempotencyKeyHeader = "Idempotency-Key"

type Checkouts interface {
	Begin(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	Get(ctx context.Context, id string) (*domain.CheckoutSession, error)
	Cancel(ctx context.Context, reference string) (*domain.CheckoutSession, error)
}

type CheckoutHandler struct {
	checkouts Checkouts
	timeout   time.Duration
}

func NewCheckoutHandler(checkouts Checkouts, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts, timeout: timeout}
}

type InitiateCheckoutRequestDTO struct {
	IdempotencyKey string `json:"idempotency_key"`
	Email          string `json:"email"`
}

// InitiateCheckout starts a checkout for the caller's cart and answers once
// the session awaits payment or has failed validation.
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID, ok := cartIDFromRequest(w, r)
	if !ok {
		return
	}

	var req InitiateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	session, err := h.checkouts.Begin(ctx, domain.CheckoutRequest{
		CartID:         cartID,
		User:           membership.CurrentUser(r.Context()),
		Email:          req.Email,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, sessionStatusCode(session), session)
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkouts.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !canView(membership.CurrentUser(r.Context()), session) {
		respondError(w, http.StatusNotFound, "not_found", "checkout not found")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// CancelCheckout abandons the payment of the checkout with {reference}.
func (h *CheckoutHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkouts.Cancel(ctx, chi.URLParam(r, "reference"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func sessionStatusCode(s *domain.CheckoutSession) int {
	switch {
	case s.Status == domain.CheckoutStatusCompleted:
		return http.StatusOK
	case s.Status != domain.CheckoutStatusFailed:
		return http.StatusAccepted
	case s.FailureReason == domain.FailureInsufficientStock:
		return http.StatusConflict
	case s.FailureReason == domain.FailureUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

// canView hides other users' sessions. Guest sessions are reachable by id.
func canView(u *domain.User, s *domain.CheckoutSession) bool {
	if s.UserID == "" {
		return true
	}
	return u != nil && (u.IsAdmin || u.ID == s.UserID)
}
