package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nana-k-osei/LAGC/inventory-service/internal/domain"
	"github.com/nana-k-osei/LAGC/inventory-service/internal/store"
	pb "github.com/nana-k-osei/LAGC/inventory-service/pkg/inventoryrpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InventoryServiceServer implements the gRPC inventory service
type InventoryServiceServer struct {
	pb.UnimplementedInventoryServiceServer
	store  store.InventoryStore
	logger *slog.Logger
}

func NewInventoryServiceServer(store store.InventoryStore, logger *slog.Logger) *InventoryServiceServer {
	return &InventoryServiceServer{
		store:  store,
		logger: logger,
	}
}

func (s *InventoryServiceServer) GetStock(ctx context.Context, req *pb.GetStockRequest) (*pb.GetStockResponse, error) {
	if len(req.ProductIDs) == 0 {
		return &pb.GetStockResponse{Stocks: []*pb.StockInfo{}}, nil
	}

	stocks, err := s.store.GetStock(ctx, req.ProductIDs)
	if err != nil {
		return nil, s.mapStoreError(ctx, err)
	}

	out := make([]*pb.StockInfo, len(stocks))
	for i, stock := range stocks {
		out[i] = toProtoStock(stock)
	}
	return &pb.GetStockResponse{Stocks: out}, nil
}

func (s *InventoryServiceServer) GetAvailable(ctx context.Context, req *pb.GetAvailableRequest) (*pb.GetAvailableResponse, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	available, err := s.store.GetAvailable(ctx, req.ProductID)
	if err != nil {
		return nil, s.mapStoreError(ctx, err)
	}
	return &pb.GetAvailableResponse{ProductID: req.ProductID, Available: available}, nil
}

func (s *InventoryServiceServer) Reserve(ctx context.Context, req *pb.ReserveRequest) (*pb.ReserveResponse, error) {
	if req.CheckoutID == "" {
		return nil, status.Error(codes.InvalidArgument, "checkout_id is required")
	}
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	if req.Quantity <= 0 {
		return nil, status.Error(codes.InvalidArgument, "quantity must be greater than 0")
	}

	reservation, err := s.store.Reserve(ctx, req.CheckoutID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, s.mapStoreError(ctx, err)
	}

	s.logger.InfoContext(ctx, "stock reserved",
		"reservation_id", reservation.ID,
		"checkout_id", req.CheckoutID,
		"product_id", req.ProductID,
		"quantity", req.Quantity,
	)

	return &pb.ReserveResponse{
		ReservationID: reservation.ID,
		ExpiresAt:     reservation.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *InventoryServiceServer) Commit(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
	if req.ReservationID == "" {
		return nil, status.Error(codes.InvalidArgument, "reservation_id is required")
	}

	if err := s.store.Commit(ctx, req.ReservationID); err != nil {
		return nil, s.mapStoreError(ctx, err)
	}
	return &pb.CommitResponse{Success: true}, nil
}

func (s *InventoryServiceServer) Release(ctx context.Context, req *pb.ReleaseRequest) (*pb.ReleaseResponse, error) {
	if req.ReservationID == "" {
		return nil, status.Error(codes.InvalidArgument, "reservation_id is required")
	}

	if err := s.store.Release(ctx, req.ReservationID); err != nil {
		return nil, s.mapStoreError(ctx, err)
	}
	return &pb.ReleaseResponse{Success: true}, nil
}

func (s *InventoryServiceServer) Restock(ctx context.Context, req *pb.RestockRequest) (*pb.RestockResponse, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	if req.Quantity <= 0 {
		return nil, status.Error(codes.InvalidArgument, "quantity must be greater than 0")
	}

	stock, err := s.store.Restock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, s.mapStoreError(ctx, err)
	}

	s.logger.InfoContext(ctx, "product restocked", "product_id", req.ProductID, "quantity", req.Quantity, "total", stock.Total)
	return &pb.RestockResponse{Stock: toProtoStock(stock)}, nil
}

func (s *InventoryServiceServer) ListStock(ctx context.Context, _ *pb.ListStockRequest) (*pb.ListStockResponse, error) {
	stocks, err := s.store.ListStock(ctx)
	if err != nil {
		return nil, s.mapStoreError(ctx, err)
	}

	out := make([]*pb.StockInfo, len(stocks))
	for i, stock := range stocks {
		out[i] = toProtoStock(stock)
	}
	return &pb.ListStockResponse{Stocks: out}, nil
}

// SetStock replaces a product's total, creating the product when unknown.
func (s *InventoryServiceServer) SetStock(ctx context.Context, req *pb.SetStockRequest) (*pb.SetStockResponse, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	if req.Total < 0 {
		return nil, status.Error(codes.InvalidArgument, "total must not be negative")
	}

	if err := s.store.SetStock(ctx, req.ProductID, req.Total); err != nil {
		return nil, s.mapStoreError(ctx, err)
	}
	stocks, err := s.store.GetStock(ctx, []string{req.ProductID})
	if err != nil {
		return nil, s.mapStoreError(ctx, err)
	}
	if len(stocks) == 0 {
		return nil, status.Error(codes.Internal, "stock missing after update")
	}

	s.logger.InfoContext(ctx, "stock level set", "product_id", req.ProductID, "total", req.Total)
	return &pb.SetStockResponse{Stock: toProtoStock(stocks[0])}, nil
}

// mapStoreError converts store errors to gRPC status codes
func (s *InventoryServiceServer) mapStoreError(ctx context.Context, err error) error {
	var shortage *store.InsufficientStockError
	switch {
	case errors.As(err, &shortage):
		return pb.InsufficientStockError(shortage.ProductID, shortage.Requested, shortage.Available)
	case errors.Is(err, store.ErrProductNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, store.ErrReservationNotFound):
		return status.Error(codes.NotFound, "reservation not found")
	case errors.Is(err, store.ErrReservationExpired):
		return status.Error(codes.FailedPrecondition, "reservation has expired")
	case errors.Is(err, store.ErrInvalidStatus):
		return status.Error(codes.FailedPrecondition, "invalid reservation status")
	case errors.Is(err, store.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrTransient):
		s.logger.WarnContext(ctx, "inventory backend contention", "error", err)
		return status.Error(codes.Unavailable, "inventory backend unavailable")
	default:
		s.logger.ErrorContext(ctx, "inventory store failure", "error", err)
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

func toProtoStock(stock domain.StockInfo) *pb.StockInfo {
	info := &pb.StockInfo{
		ProductID: stock.ProductID,
		Total:     stock.Total,
		Reserved:  stock.Reserved,
		Available: stock.Available(),
	}
	if !stock.LastUpdated.IsZero() {
		info.LastUpdated = stock.LastUpdated.UTC().Format(time.RFC3339)
	}
	return info
}
