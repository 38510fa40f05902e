package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/checkout"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
)

type ErrorResponse struct {
	Error    string                         `json:"error"`
	Code     string                         `json:"code,omitempty"`
	Details  string                         `json:"details,omitempty"`
	Shortage *domain.InsufficientStockError `json:"shortage,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// errorMapping is checked in order; the first sentinel matched by errors.Is
// decides the status.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidVariant, http.StatusBadRequest, "invalid_variant"},
	{domain.ErrIndexOutOfRange, http.StatusBadRequest, "index_out_of_range"},
	{domain.ErrInvalidDiscount, http.StatusBadRequest, "invalid_discount"},
	{domain.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{membership.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{checkout.ErrEmailRequired, http.StatusBadRequest, "email_required"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrPaymentCancelled, http.StatusConflict, "payment_cancelled"},
	{domain.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{domain.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{membership.ErrAlreadyMember, http.StatusConflict, "already_member"},
	{checkout.ErrNotRunning, http.StatusConflict, "not_awaiting_payment"},
	{domain.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{domain.ErrTransient, http.StatusServiceUnavailable, "service_unavailable"},
	{membership.ErrNotReady, http.StatusServiceUnavailable, "service_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// handleDomainError converts service errors into HTTP responses. Anything
// unmapped is logged and reported as a 500 without details.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var shortage *domain.InsufficientStockError
	if errors.As(err, &shortage) {
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:    shortage.Error(),
			Code:     "insufficient_stock",
			Shortage: shortage,
		})
		return
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
