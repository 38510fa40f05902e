package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nana-k-osei/LAGC/inventory-service/internal/config"
	inventorygrpc "github.com/nana-k-osei/LAGC/inventory-service/internal/grpc"
	"github.com/nana-k-osei/LAGC/inventory-service/internal/store"
	pb "github.com/nana-k-osei/LAGC/inventory-service/pkg/inventoryrpc"
	"github.com/nana-k-osei/LAGC/pkg/logger"
	"github.com/nana-k-osei/LAGC/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.Init("inventory-service", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.Setup(ctx, "inventory-service", cfg.Environment, cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRatio)
	if err != nil {
		log.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("tracer shutdown error", "error", err)
		}
	}()

	inventoryStore, closeBackend, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	if err := seedStock(ctx, inventoryStore, cfg.SeedStock); err != nil {
		log.Error("failed to seed stock", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPC.Port))
	if err != nil {
		log.Error("failed to listen", "port", cfg.GRPC.Port, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	pb.RegisterInventoryServiceServer(grpcServer, inventorygrpc.NewInventoryServiceServer(inventoryStore, log))

	go func() {
		log.Info("inventory service listening", "port", cfg.GRPC.Port, "store", cfg.Store.Backend)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("failed to serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down inventory service")
	grpcServer.GracefulStop()
	if err := inventoryStore.Close(); err != nil {
		log.Error("failed to stop store", "error", err)
	}
	log.Info("inventory service stopped")
}

func newStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.InventoryStore, func(), error) {
	opts := store.Options{
		ReservationTTL:   cfg.Store.ReservationTTL,
		CleanupInterval:  cfg.Store.CleanupInterval,
		SettledRetention: cfg.Store.SettledRetention,
		Logger:           log,
	}

	if cfg.Store.Backend == "memory" {
		return store.NewMemoryStore(opts), func() {}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Store.RedisAddrs,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	s, err := store.NewRedisStore(client, cfg.Store.KeyPrefix, opts)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return s, func() { _ = client.Close() }, nil
}

// seedStock sets initial levels for products that have no ledger record.
func seedStock(ctx context.Context, s store.InventoryStore, seed map[string]int32) error {
	ids := make([]string, 0, len(seed))
	for id := range seed {
		ids = append(ids, id)
	}

	existing, err := s.GetStock(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, st := range existing {
		known[st.ProductID] = true
	}

	for id, qty := range seed {
		if known[id] {
			continue
		}
		if err := s.SetStock(ctx, id, qty); err != nil {
			return fmt.Errorf("set stock for %s: %w", id, err)
		}
	}
	return nil
}
