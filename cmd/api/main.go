package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordercore-backend/api/routes"
	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/cache"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/checkout"
	"github.com/angelmondragon/ordercore-backend/internal/notifications"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/internal/stock"
	"github.com/angelmondragon/ordercore-backend/internal/webhooks/payments"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db"
	"github.com/angelmondragon/ordercore-backend/pkg/instance"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/metrics"
	"github.com/angelmondragon/ordercore-backend/pkg/migrate"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/ordercore-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":     addr,
		"instance": instance.ID("api"),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	ledger := stock.NewLedger(engineMetrics, logg)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	invalidator, err := cache.NewRedisInvalidator(redisClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	auditSvc, err := audit.NewService(conn, cfg.Orders)
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, dbClient, ledger, emitter, invalidator, cfg.Cart, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderRepo := orders.NewRepository(conn)
	checkoutSvc, err := checkout.NewService(dbClient, cartRepo, orderRepo, ledger, auditSvc, emitter, invalidator, cfg.Cart, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repository: orderRepo,
		TxRunner:   dbClient,
		Ledger:     ledger,
		Audit:      auditSvc,
		Outbox:     emitter,
		Cache:      invalidator,
		Dispatcher: notifications.NewLogDispatcher(logg),
		Metrics:    engineMetrics,
		Config:     cfg.Orders,
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	guard, err := idempotency.NewManager(redisClient, payments.ConsumerName, cfg.Webhooks.IdempotencyTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}
	webhookSvc, err := payments.NewService(payments.ServiceParams{
		Orders: ordersSvc,
		Guard:  guard,
		Logger: logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Config:           cfg,
		Logger:           logg,
		DB:               dbClient,
		Redis:            redisClient,
		IdempotencyStore: redisClient,
		Carts:            cartSvc,
		Checkout:         checkoutSvc,
		Orders:           ordersSvc,
		Audit:            auditSvc,
		PaymentWebhooks:  webhookSvc,
	}, nil
}
