package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/cache"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/cron"
	"github.com/angelmondragon/ordercore-backend/internal/notifications"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/internal/stock"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db"
	"github.com/angelmondragon/ordercore-backend/pkg/instance"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/metrics"
	"github.com/angelmondragon/ordercore-backend/pkg/migrate"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
	"github.com/angelmondragon/ordercore-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID("cron-worker"),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	ledger := stock.NewLedger(engineMetrics, logg)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)

	invalidator, err := cache.NewRedisInvalidator(redisClient, logg)
	if err != nil {
		return nil, err
	}
	auditSvc, err := audit.NewService(conn, cfg.Orders)
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(cart.NewRepository(conn), dbClient, ledger, emitter, invalidator, cfg.Cart, logg)
	if err != nil {
		return nil, err
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
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
		return nil, err
	}

	cartJob, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{Logger: logg, Carts: cartSvc})
	if err != nil {
		return nil, err
	}
	unpaidJob, err := cron.NewUnpaidOrderJob(cron.UnpaidOrderJobParams{Logger: logg, Orders: ordersSvc, TTL: cfg.Orders.UnpaidTTL})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(cartJob, unpaidJob, retentionJob)
}
