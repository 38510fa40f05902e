package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nana-k-osei/LAGC/pkg/logger"
	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/nana-k-osei/LAGC/pkg/telemetry"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/cache"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/checkout"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/config"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/events"
	storefronthttp "github.com/nana-k-osei/LAGC/storefront-service/internal/http"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/inventory"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/membership"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/payment"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/publisher"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.Init("storefront-service", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("storefront service stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTracer, err := telemetry.Setup(ctx, "storefront-service", cfg.Environment, cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRatio)
	if err != nil {
		return fmt.Errorf("initialise tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("tracer shutdown error", "error", err)
		}
	}()

	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}
	pg, err := repository.NewPostgres(ctx, creds)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.RunMigrations(creds); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	log.Info("postgres migrations completed")

	catalog, err := repository.NewCatalogRepository(cfg.Catalog.DSN)
	if err != nil {
		return err
	}
	defer catalog.Close()
	if err := catalog.RunMigrations(cfg.Catalog.MigrationsDir); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}

	mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoOptions{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Error("mongo disconnect error", "error", err)
		}
	}()
	carts := repository.NewCartRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("cart indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	inventoryConn, err := inventory.Dial(cfg.Inventory.Addr)
	if err != nil {
		return err
	}
	defer inventoryConn.Close()
	ledger := inventory.NewClient(inventoryConn, cfg.Inventory.Timeout, log)

	broker := events.NewBroker()
	cartService := service.NewCartService(carts, cache.NewRedisCache(redisClient, cfg.Redis.CartTTL), catalog, broker, log)
	members := membership.NewService(pg, cfg.Checkout.ReadyTimeout, log)

	gateway, webhooks := newGateway(cfg, log)
	checkoutService := checkout.NewService(pg, ledger, gateway, cartService, members, checkout.Config{
		Currency: cfg.Checkout.Currency,
		Policy: pricing.Policy{
			ShippingFee:           cfg.Checkout.ShippingFee,
			FreeShippingThreshold: cfg.Checkout.FreeShippingOver,
		},
		HoldTimeout:  cfg.Checkout.HoldTimeout,
		ReadyTimeout: cfg.Checkout.ReadyTimeout,
	}, log)
	if paystack, ok := gateway.(*payment.Paystack); ok {
		paystack.OnOrphanCharge(checkoutService.SettleCaptured)
	}

	writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error("kafka writer close error", "error", err)
		}
	}()
	poller := publisher.NewOutboxPoller(pg, checkoutService, writer, cfg.Checkout.ReconcileInterval, log)

	router := storefronthttp.NewRouter(storefronthttp.RouterConfig{
		Catalog:   cartService,
		Carts:     cartService,
		Events:    broker,
		Checkouts: checkoutService,
		Members:   members,
		Stock:     ledger,
		Orders:    pg,
		Auth:      membership.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Pricing: pricing.Policy{
			ShippingFee:           cfg.Checkout.ShippingFee,
			FreeShippingThreshold: cfg.Checkout.FreeShippingOver,
		},
		Webhooks:       webhooks,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := members.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error {
		log.Info("storefront listening", "addr", srv.Addr, "gateway", gateway.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down storefront service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	waitForCheckouts(checkoutService, log)
	return err
}

// waitForCheckouts gives in-flight checkouts a bounded grace period. Sessions
// still awaiting payment afterwards are expired or reconciled on the next
// start.
func waitForCheckouts(svc *checkout.Service, log *slog.Logger) {
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Warn("checkouts still running at shutdown", "grace", shutdownTimeout)
	}
}

// newGateway returns the configured payment gateway and, for Paystack, the
// webhook receiver.
func newGateway(cfg *config.Config, log *slog.Logger) (payment.Gateway, storefronthttp.Webhooks) {
	if cfg.Payment.Gateway == "paystack" {
		p := payment.NewPaystack(payment.PaystackConfig{
			BaseURL:     cfg.Paystack.BaseURL,
			SecretKey:   cfg.Paystack.SecretKey,
			CallbackURL: cfg.Paystack.CallbackURL,
		}, nil, log)
		return p, p
	}
	return payment.NewSimulated(cfg.Payment.SimSuccessRatio, cfg.Payment.SimDelay), nil
}
