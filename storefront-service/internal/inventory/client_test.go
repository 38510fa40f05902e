package inventory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/nana-k-osei/LAGC/inventory-service/pkg/inventoryrpc"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

// fakeLedger keeps per-product availability and hands out sequential
// reservation ids.
type fakeLedger struct {
	pb.UnimplementedInventoryServiceServer

	mu        sync.Mutex
	available map[string]int32
	held      map[string]int32
	committed map[string]bool
	seq       int

	unavailableFor atomic.Int32
	calls          atomic.Int32
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		available: map[string]int32{"love-cap": 3, "performance-tennis-shirt": 10},
		held:      map[string]int32{},
		committed: map[string]bool{},
	}
}

func (f *fakeLedger) flaky() error {
	f.calls.Add(1)
	if f.unavailableFor.Load() > 0 {
		f.unavailableFor.Add(-1)
		return status.Error(codes.Unavailable, "backend busy")
	}
	return nil
}

func (f *fakeLedger) Reserve(_ context.Context, req *pb.ReserveRequest) (*pb.ReserveResponse, error) {
	if err := f.flaky(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	avail, ok := f.available[req.ProductID]
	if !ok {
		return nil, status.Error(codes.NotFound, "product not found")
	}
	if req.Quantity <= 0 {
		return nil, status.Error(codes.InvalidArgument, "quantity must be positive")
	}
	if avail < req.Quantity {
		return nil, pb.InsufficientStockError(req.ProductID, req.Quantity, avail)
	}
	f.available[req.ProductID] = avail - req.Quantity
	f.seq++
	id := fmt.Sprintf("%s#%d", req.ProductID, f.seq)
	f.held[id] = req.Quantity
	return &pb.ReserveResponse{ReservationID: id}, nil
}

func (f *fakeLedger) Commit(_ context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
	if err := f.flaky(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[req.ReservationID]; !ok && !f.committed[req.ReservationID] {
		return nil, status.Error(codes.FailedPrecondition, "invalid reservation status")
	}
	delete(f.held, req.ReservationID)
	f.committed[req.ReservationID] = true
	return &pb.CommitResponse{Success: true}, nil
}

func (f *fakeLedger) GetAvailable(_ context.Context, req *pb.GetAvailableRequest) (*pb.GetAvailableResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	avail, ok := f.available[req.ProductID]
	if !ok {
		return nil, status.Error(codes.NotFound, "product not found")
	}
	return &pb.GetAvailableResponse{ProductID: req.ProductID, Available: avail}, nil
}

func (f *fakeLedger) GetStock(_ context.Context, req *pb.GetStockRequest) (*pb.GetStockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &pb.GetStockResponse{}
	for _, id := range req.ProductIDs {
		resp.Stocks = append(resp.Stocks, &pb.StockInfo{
			ProductID:   id,
			Total:       f.available[id],
			Available:   f.available[id],
			LastUpdated: "2026-03-01T10:00:00Z",
		})
	}
	return resp, nil
}

func (f *fakeLedger) Restock(_ context.Context, req *pb.RestockRequest) (*pb.RestockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available[req.ProductID] += req.Quantity
	return &pb.RestockResponse{Stock: &pb.StockInfo{ProductID: req.ProductID, Total: f.available[req.ProductID], Available: f.available[req.ProductID]}}, nil
}

func (f *fakeLedger) ListStock(context.Context, *pb.ListStockRequest) (*pb.ListStockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.available))
	for id := range f.available {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	resp := &pb.ListStockResponse{}
	for _, id := range ids {
		resp.Stocks = append(resp.Stocks, &pb.StockInfo{ProductID: id, Total: f.available[id], Available: f.available[id]})
	}
	return resp, nil
}

func (f *fakeLedger) SetStock(_ context.Context, req *pb.SetStockRequest) (*pb.SetStockResponse, error) {
	if req.Total < 0 {
		return nil, status.Error(codes.InvalidArgument, "total must not be negative")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available[req.ProductID] = req.Total
	return &pb.SetStockResponse{Stock: &pb.StockInfo{ProductID: req.ProductID, Total: req.Total, Available: req.Total}}, nil
}

func startLedger(t *testing.T, ledger pb.InventoryServiceServer) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	pb.RegisterInventoryServiceServer(srv, ledger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(pb.RetryServiceConfig),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewClient(conn, 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_ReserveAndCommit(t *testing.T) {
	ledger := newFakeLedger()
	client := startLedger(t, ledger)
	ctx := context.Background()

	id, err := client.Reserve(ctx, "checkout-1", "love-cap", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	avail, err := client.Available(ctx, "love-cap")
	require.NoError(t, err)
	assert.Equal(t, 1, avail)

	require.NoError(t, client.Commit(ctx, id))
	require.NoError(t, client.Commit(ctx, id), "commit is idempotent")
}

func TestClient_InsufficientStockCarriesAvailable(t *testing.T) {
	client := startLedger(t, newFakeLedger())

	_, err := client.Reserve(context.Background(), "checkout-1", "love-cap", 5)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var shortage *domain.InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, "love-cap", shortage.ProductID)
	assert.Equal(t, 5, shortage.Requested)
	assert.Equal(t, 3, shortage.Available)
}

func TestClient_ErrorMapping(t *testing.T) {
	client := startLedger(t, newFakeLedger())
	ctx := context.Background()

	_, err := client.Reserve(ctx, "checkout-1", "racket", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = client.Reserve(ctx, "checkout-1", "love-cap", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	err = client.Commit(ctx, "never-reserved")
	assert.ErrorIs(t, err, ErrReservationClosed)

	err = client.Release(ctx, "anything")
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	ledger := newFakeLedger()
	client := startLedger(t, ledger)
	ctx := context.Background()

	id, err := client.Reserve(ctx, "checkout-1", "love-cap", 1)
	require.NoError(t, err)

	ledger.calls.Store(0)
	ledger.unavailableFor.Store(2)
	require.NoError(t, client.Commit(ctx, id))
	assert.Equal(t, int32(3), ledger.calls.Load())
}

func TestClient_GivesUpAsTransient(t *testing.T) {
	ledger := newFakeLedger()
	client := startLedger(t, ledger)
	ctx := context.Background()

	id, err := client.Reserve(ctx, "checkout-1", "love-cap", 1)
	require.NoError(t, err)

	ledger.calls.Store(0)
	ledger.unavailableFor.Store(100)
	assert.ErrorIs(t, client.Commit(ctx, id), domain.ErrTransient)
	assert.Equal(t, int32(4), ledger.calls.Load())
}

func TestClient_ReserveIsSentOnce(t *testing.T) {
	ledger := newFakeLedger()
	ledger.unavailableFor.Store(1)
	client := startLedger(t, ledger)
	ctx := context.Background()

	_, err := client.Reserve(ctx, "checkout-1", "love-cap", 1)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, int32(1), ledger.calls.Load())

	available, err := client.Available(ctx, "love-cap")
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestClient_BreakerOpensOnRepeatedOutage(t *testing.T) {
	ledger := newFakeLedger()
	ledger.unavailableFor.Store(1000)
	client := startLedger(t, ledger)
	ctx := context.Background()

	for range 5 {
		_, err := client.Reserve(ctx, "checkout-1", "love-cap", 1)
		require.ErrorIs(t, err, domain.ErrTransient)
	}
	before := ledger.calls.Load()

	_, err := client.Reserve(ctx, "checkout-1", "love-cap", 1)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, before, ledger.calls.Load(), "open breaker must not reach the ledger")
}

func TestClient_BusinessRejectionsDoNotTripBreaker(t *testing.T) {
	ledger := newFakeLedger()
	client := startLedger(t, ledger)
	ctx := context.Background()

	for range 10 {
		_, err := client.Reserve(ctx, "checkout-1", "love-cap", 50)
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	_, err := client.Reserve(ctx, "checkout-1", "love-cap", 1)
	assert.NoError(t, err)
}

func TestClient_StockAndRestock(t *testing.T) {
	client := startLedger(t, newFakeLedger())
	ctx := context.Background()

	levels, err := client.Stock(ctx, "love-cap")
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 3, levels[0].Available)
	assert.Equal(t, 2026, levels[0].LastUpdated.Year())

	level, err := client.Restock(ctx, "love-cap", 7)
	require.NoError(t, err)
	assert.Equal(t, 10, level.Available)
}

func TestClient_ListAndSetStock(t *testing.T) {
	client := startLedger(t, newFakeLedger())
	ctx := context.Background()

	level, err := client.SetStock(ctx, "fanny-pack", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, level.Total)

	levels, err := client.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, "fanny-pack", levels[0].ProductID)
	assert.Equal(t, "love-cap", levels[1].ProductID)

	_, err = client.SetStock(ctx, "fanny-pack", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
