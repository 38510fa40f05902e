package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/inventory"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
)

type Members interface {
	Discounts
	SignUp(ctx context.Context, user *domain.User, fullName string) (*domain.Member, error)
	Member(ctx context.Context, user *domain.User) (*domain.Member, error)
	SetGlobalDiscount(ctx context.Context, admin *domain.User, percent decimal.Decimal) (*domain.DiscountRecord, error)
	History(ctx context.Context, admin *domain.User, limit int) ([]*domain.DiscountRecord, error)
	SetStatus(ctx context.Context, admin *domain.User, userID string, status domain.MemberStatus) (*domain.Member, error)
	ListMembers(ctx context.Context, admin *domain.User) ([]*domain.Member, error)
}

type Stock interface {
	Available(ctx context.Context, productID string) (int, error)
	Restock(ctx context.Context, productID string, quantity int) (inventory.StockLevel, error)
	ListStock(ctx context.Context) ([]inventory.StockLevel, error)
	SetStock(ctx context.Context, productID string, total int) (inventory.StockLevel, error)
}

type MemberHandler struct {
	members Members
	timeout time.Duration
}

func NewMemberHandler(members Members, timeout time.Duration) *MemberHandler {
	return &MemberHandler{members: members, timeout: timeout}
}

type SignUpRequestDTO struct {
	FullName string `json:"full_name"`
}

type MemberResponseDTO struct {
	*domain.Member
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func (h *MemberHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SignUpRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.FullName == "" {
		respondError(w, http.StatusBadRequest, "invalid_full_name", "full_name is required")
		return
	}

	m, err := h.members.SignUp(ctx, membership.CurrentUser(r.Context()), req.FullName)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := membership.CurrentUser(r.Context())
	m, err := h.members.Member(ctx, user)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	discount, err := h.members.DiscountPercent(ctx, user)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MemberResponseDTO{Member: m, DiscountPercent: discount})
}

type AdminHandler struct {
	members Members
	stock   Stock
	timeout time.Duration
}

func NewAdminHandler(members Members, stock Stock, timeout time.Duration) *AdminHandler {
	return &AdminHandler{members: members, stock: stock, timeout: timeout}
}

type SetDiscountRequestDTO struct {
	Percentage decimal.Decimal `json:"percentage"`
}

type SetMemberStatusRequestDTO struct {
	Status domain.MemberStatus `json:"status"`
}

type RestockRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SetStockRequestDTO struct {
	Total *int `json:"total"`
}

type AvailabilityDTO struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
}

func (h *AdminHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetDiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	rec, err := h.members.SetGlobalDiscount(ctx, membership.CurrentUser(r.Context()), req.Percentage)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *AdminHandler) DiscountHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := h.members.History(ctx, membership.CurrentUser(r.Context()), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if history == nil {
		history = []*domain.DiscountRecord{}
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *AdminHandler) SetMemberStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetMemberStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	m, err := h.members.SetStatus(ctx, membership.CurrentUser(r.Context()), chi.URLParam(r, "userId"), req.Status)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *AdminHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	members, err := h.members.ListMembers(ctx, membership.CurrentUser(r.Context()))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if members == nil {
		members = []*domain.Member{}
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *AdminHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	levels, err := h.stock.ListStock(ctx)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if levels == nil {
		levels = []inventory.StockLevel{}
	}
	respondJSON(w, http.StatusOK, levels)
}

// SetStock overwrites the total on hand, for stock counts and corrections.
func (h *AdminHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetStockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Total == nil || *req.Total < 0 {
		handleDomainError(w, r, domain.ErrInvalidQuantity)
		return
	}

	level, err := h.stock.SetStock(ctx, chi.URLParam(r, "productId"), *req.Total)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, level)
}

func (h *AdminHandler) Restock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RestockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 1 {
		handleDomainError(w, r, domain.ErrInvalidQuantity)
		return
	}

	level, err := h.stock.Restock(ctx, chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, level)
}

// Availability reports the ledger's current available count. It is a
// display hint; only a reservation guarantees stock.
func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productId")
	n, err := h.stock.Available(ctx, productID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AvailabilityDTO{ProductID: productID, Available: n})
}
