package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/events"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/inventory"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
)

const (
	testSecret = "test-secret"
	testIssuer = "lagc-test"
)

var testProducts = map[string]*domain.Product{
	"performance-tennis-shirt": {ID: "performance-tennis-shirt", Name: "Performance Tennis Shirt", Price: decimal.NewFromInt(50), Sizes: []string{"M", "L"}},
	"love-cap":                 {ID: "love-cap", Name: "Love Cap", Price: decimal.NewFromInt(30)},
}

type mockCatalog struct{}

func (mockCatalog) ListProducts(context.Context) ([]*domain.Product, error) {
	return []*domain.Product{testProducts["love-cap"], testProducts["performance-tennis-shirt"]}, nil
}

func (mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := testProducts[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// mockCarts keeps carts in memory and records the user id of the last add.
type mockCarts struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	err      error
	lastUser string
}

func newMockCarts() *mockCarts {
	return &mockCarts{carts: map[string]*domain.Cart{}}
}

func (m *mockCarts) cart(id string) *domain.Cart {
	c, ok := m.carts[id]
	if !ok {
		c = domain.NewCart(id, time.Now())
		m.carts[id] = c
	}
	return c
}

func (m *mockCarts) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.cart(id).Clone(), nil
}

func (m *mockCarts) AddItem(_ context.Context, cartID, userID, productID string, quantity int, v domain.Variant) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := testProducts[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := m.cart(cartID)
	if err := c.AddItem(p, quantity, v); err != nil {
		return nil, err
	}
	m.lastUser = userID
	c.Version++
	return c.Clone(), nil
}

func (m *mockCarts) UpdateQuantity(_ context.Context, cartID string, index, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cart(cartID)
	if err := c.UpdateQuantity(index, quantity); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (m *mockCarts) RemoveItem(_ context.Context, cartID string, index int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cart(cartID)
	if err := c.RemoveItem(index); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (m *mockCarts) ClearCart(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart(cartID).Clear()
	return nil
}

type mockCheckouts struct {
	session   *domain.CheckoutSession
	err       error
	lastBegin domain.CheckoutRequest
	cancelled string
}

func (m *mockCheckouts) Begin(_ context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	m.lastBegin = req
	return m.session, m.err
}

func (m *mockCheckouts) Get(_ context.Context, id string) (*domain.CheckoutSession, error) {
	if m.session == nil || m.session.ID != id {
		return nil, domain.ErrNotFound
	}
	return m.session, nil
}

func (m *mockCheckouts) Cancel(_ context.Context, reference string) (*domain.CheckoutSession, error) {
	m.cancelled = reference
	return m.session, m.err
}

type mockMembers struct {
	discount decimal.Decimal
	members  map[string]*domain.Member
	history  []*domain.DiscountRecord
	err      error
}

func newMockMembers() *mockMembers {
	return &mockMembers{members: map[string]*domain.Member{}}
}

func (m *mockMembers) DiscountPercent(_ context.Context, user *domain.User) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	if user == nil || !m.members[user.ID].IsActive() {
		return decimal.Zero, nil
	}
	return m.discount, nil
}

func (m *mockMembers) SignUp(_ context.Context, user *domain.User, fullName string) (*domain.Member, error) {
	if _, ok := m.members[user.ID]; ok {
		return nil, membership.ErrAlreadyMember
	}
	mem := &domain.Member{UserID: user.ID, Email: user.Email, FullName: fullName, Status: domain.MemberStatusActive, JoinDiscount: m.discount}
	m.members[user.ID] = mem
	return mem, nil
}

func (m *mockMembers) Member(_ context.Context, user *domain.User) (*domain.Member, error) {
	mem, ok := m.members[user.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return mem, nil
}

func (m *mockMembers) SetGlobalDiscount(_ context.Context, admin *domain.User, percent decimal.Decimal) (*domain.DiscountRecord, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrInvalidDiscount
	}
	rec := &domain.DiscountRecord{Version: int64(len(m.history) + 1), Percentage: percent, PreviousPercentage: m.discount, SetBy: admin.ID}
	m.discount = percent
	m.history = append([]*domain.DiscountRecord{rec}, m.history...)
	return rec, nil
}

func (m *mockMembers) History(_ context.Context, _ *domain.User, limit int) ([]*domain.DiscountRecord, error) {
	if limit > 0 && limit < len(m.history) {
		return m.history[:limit], nil
	}
	return m.history, nil
}

func (m *mockMembers) SetStatus(_ context.Context, _ *domain.User, userID string, status domain.MemberStatus) (*domain.Member, error) {
	if status != domain.MemberStatusActive && status != domain.MemberStatusInactive {
		return nil, membership.ErrInvalidStatus
	}
	mem, ok := m.members[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	mem.Status = status
	return mem, nil
}

func (m *mockMembers) ListMembers(context.Context, *domain.User) ([]*domain.Member, error) {
	out := make([]*domain.Member, 0, len(m.members))
	for _, mem := range m.members {
		out = append(out, mem)
	}
	slices.SortFunc(out, func(a, b *domain.Member) int { return strings.Compare(a.UserID, b.UserID) })
	return out, nil
}

type mockStock struct {
	available map[string]int
	err       error
}

func (m *mockStock) Available(_ context.Context, productID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n, ok := m.available[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return n, nil
}

func (m *mockStock) Restock(_ context.Context, productID string, quantity int) (inventory.StockLevel, error) {
	if m.err != nil {
		return inventory.StockLevel{}, m.err
	}
	m.available[productID] += quantity
	return inventory.StockLevel{ProductID: productID, Total: m.available[productID], Available: m.available[productID]}, nil
}

func (m *mockStock) ListStock(context.Context) ([]inventory.StockLevel, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]string, 0, len(m.available))
	for id := range m.available {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	levels := make([]inventory.StockLevel, 0, len(ids))
	for _, id := range ids {
		levels = append(levels, inventory.StockLevel{ProductID: id, Total: m.available[id], Available: m.available[id]})
	}
	return levels, nil
}

func (m *mockStock) SetStock(_ context.Context, productID string, total int) (inventory.StockLevel, error) {
	if m.err != nil {
		return inventory.StockLevel{}, m.err
	}
	m.available[productID] = total
	return inventory.StockLevel{ProductID: productID, Total: total, Available: total}, nil
}

type mockOrders struct {
	txs []*domain.Transaction
}

func (m *mockOrders) ListTransactionsByUser(_ context.Context, userID string) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *mockOrders) GetTransactionByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	for _, tx := range m.txs {
		if tx.Reference == reference {
			return tx, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", reference, domain.ErrNotFound)
}

type mockWebhooks struct {
	err  error
	sig  string
	body string
}

func (m *mockWebhooks) HandleWebhook(_ context.Context, signature string, body []byte) error {
	m.sig, m.body = signature, string(body)
	return m.err
}

type testServer struct {
	handler   http.Handler
	auth      *membership.Authenticator
	carts     *mockCarts
	checkouts *mockCheckouts
	members   *mockMembers
	stock     *mockStock
	orders    *mockOrders
	webhooks  *mockWebhooks
	broker    *events.Broker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		auth:      membership.NewAuthenticator(testSecret, testIssuer),
		carts:     newMockCarts(),
		checkouts: &mockCheckouts{},
		members:   newMockMembers(),
		stock:     &mockStock{available: map[string]int{"love-cap": 3}},
		orders:    &mockOrders{},
		webhooks:  &mockWebhooks{},
		broker:    events.NewBroker(),
	}
	s.handler = NewRouter(RouterConfig{
		Catalog:        mockCatalog{},
		Carts:          s.carts,
		Events:         s.broker,
		Checkouts:      s.checkouts,
		Members:        s.members,
		Stock:          s.stock,
		Orders:         s.orders,
		Auth:           s.auth,
		Webhooks:       s.webhooks,
		RequestTimeout: 5 * time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return s
}

func (s *testServer) token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := s.auth.Issue(u, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

type requestOption func(*http.Request)

func withToken(tok string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

// guestCart and otherGuestCart are issued guest cart ids.
const (
	guestCart      = "guest-5b1f3c0e-8a4d-4c57-9a55-0d6f2b9e7c11"
	otherGuestCart = "guest-0c9e2a41-7d3b-4f18-b6a2-93e5d1c4f870"
)

func withCart(id string) requestOption {
	return func(r *http.Request) { r.Header.Set(CartIDHeader, id) }
}

func withHeader(k, v string) requestOption {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (s *testServer) do(method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}
