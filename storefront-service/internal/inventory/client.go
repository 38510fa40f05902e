// Package inventory talks to the inventory ledger over gRPC and translates
// its status codes into storefront domain errors.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	pb "github.com/nana-k-osei/LAGC/inventory-service/pkg/inventoryrpc"
	"github.com/nana-k-osei/LAGC/pkg/circuitbreaker"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

// ErrReservationClosed means the reservation expired or was already settled
// the other way (committing a released hold, releasing a committed one).
var ErrReservationClosed = errors.New("reservation is no longer open")

type StockLevel struct {
	ProductID   string    `json:"product_id"`
	Total       int       `json:"total"`
	Reserved    int       `json:"reserved"`
	Available   int       `json:"available"`
	LastUpdated time.Time `json:"last_updated"`
}

type Client struct {
	rpc     pb.InventoryServiceClient
	timeout time.Duration
	breaker *circuitbreaker.Breaker[struct{}]
	logger  *slog.Logger
}

// Dial opens a connection with the ledger's retry policy and tracing.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(pb.RetryServiceConfig),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory client: %w", err)
	}
	return conn, nil
}

func NewClient(cc grpc.ClientConnInterface, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		rpc:     pb.NewInventoryServiceClient(cc),
		timeout: timeout,
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			Name:         "inventory",
			IsSuccessful: isBusinessOutcome,
		}, logger),
		logger: logger,
	}
}

// Reserve holds quantity units of productID for the checkout and returns the
// reservation id.
func (c *Client) Reserve(ctx context.Context, checkoutID, productID string, quantity int) (string, error) {
	var id string
	err := c.do(ctx, "reserve", func(ctx context.Context) error {
		resp, err := c.rpc.Reserve(ctx, &pb.ReserveRequest{
			CheckoutID: checkoutID,
			ProductID:  productID,
			Quantity:   int32(quantity),
		})
		if err != nil {
			return err
		}
		id = resp.ReservationID
		return nil
	})
	return id, err
}

// Commit is idempotent on the ledger side; retrying a commit that already
// went through succeeds.
func (c *Client) Commit(ctx context.Context, reservationID string) error {
	return c.do(ctx, "commit", func(ctx context.Context) error {
		_, err := c.rpc.Commit(ctx, &pb.CommitRequest{ReservationID: reservationID})
		return err
	})
}

func (c *Client) Release(ctx context.Context, reservationID string) error {
	return c.do(ctx, "release", func(ctx context.Context) error {
		_, err := c.rpc.Release(ctx, &pb.ReleaseRequest{ReservationID: reservationID})
		return err
	})
}

func (c *Client) Available(ctx context.Context, productID string) (int, error) {
	var n int
	err := c.do(ctx, "get available", func(ctx context.Context) error {
		resp, err := c.rpc.GetAvailable(ctx, &pb.GetAvailableRequest{ProductID: productID})
		if err != nil {
			return err
		}
		n = int(resp.Available)
		return nil
	})
	return n, err
}

func (c *Client) Stock(ctx context.Context, productIDs ...string) ([]StockLevel, error) {
	var levels []StockLevel
	err := c.do(ctx, "get stock", func(ctx context.Context) error {
		resp, err := c.rpc.GetStock(ctx, &pb.GetStockRequest{ProductIDs: productIDs})
		if err != nil {
			return err
		}
		levels = make([]StockLevel, 0, len(resp.Stocks))
		for _, s := range resp.Stocks {
			levels = append(levels, fromProto(s))
		}
		return nil
	})
	return levels, err
}

func (c *Client) Restock(ctx context.Context, productID string, quantity int) (StockLevel, error) {
	var level StockLevel
	err := c.do(ctx, "restock", func(ctx context.Context) error {
		resp, err := c.rpc.Restock(ctx, &pb.RestockRequest{ProductID: productID, Quantity: int32(quantity)})
		if err != nil {
			return err
		}
		level = fromProto(resp.Stock)
		return nil
	})
	return level, err
}

// ListStock returns every product the ledger knows, ordered by id.
func (c *Client) ListStock(ctx context.Context) ([]StockLevel, error) {
	var levels []StockLevel
	err := c.do(ctx, "list stock", func(ctx context.Context) error {
		resp, err := c.rpc.ListStock(ctx, &pb.ListStockRequest{})
		if err != nil {
			return err
		}
		levels = make([]StockLevel, 0, len(resp.Stocks))
		for _, s := range resp.Stocks {
			levels = append(levels, fromProto(s))
		}
		return nil
	})
	return levels, err
}

// SetStock replaces the total on hand for productID.
func (c *Client) SetStock(ctx context.Context, productID string, total int) (StockLevel, error) {
	var level StockLevel
	err := c.do(ctx, "set stock", func(ctx context.Context) error {
		resp, err := c.rpc.SetStock(ctx, &pb.SetStockRequest{ProductID: productID, Total: int32(total)})
		if err != nil {
			return err
		}
		level = fromProto(resp.Stock)
		return nil
	})
	return level, err
}

func (c *Client) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	if err == nil {
		return nil
	}

	mapped := mapError(err)
	if errors.Is(mapped, domain.ErrTransient) {
		c.logger.WarnContext(ctx, "inventory call failed", "op", op, "error", err)
	}
	return fmt.Errorf("inventory %s: %w", op, mapped)
}

// isBusinessOutcome keeps rejections from a healthy ledger from tripping the
// breaker.
func isBusinessOutcome(err error) bool {
	if err == nil {
		return true
	}
	switch status.Code(err) {
	case codes.NotFound, codes.FailedPrecondition, codes.InvalidArgument, codes.Canceled:
		return true
	}
	return false
}

func mapError(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}

	if shortage, ok := pb.ParseInsufficientStock(err); ok {
		return &domain.InsufficientStockError{
			ProductID: shortage.ProductID,
			Requested: int(shortage.Requested),
			Available: int(shortage.Available),
		}
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrReservationClosed, st.Message())
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", domain.ErrTransient, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return err
	}
}

func fromProto(s *pb.StockInfo) StockLevel {
	if s == nil {
		return StockLevel{}
	}
	level := StockLevel{
		ProductID: s.ProductID,
		Total:     int(s.Total),
		Reserved:  int(s.Reserved),
		Available: int(s.Available),
	}
	if t, err := time.Parse(time.RFC3339, s.LastUpdated); err == nil {
		level.LastUpdated = t
	}
	return level
}
