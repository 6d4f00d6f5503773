package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backoffice/api"
	"github.com/angelmondragon/storefront-backoffice/api/routes"
	"github.com/angelmondragon/storefront-backoffice/internal/catalog"
	"github.com/angelmondragon/storefront-backoffice/internal/orders"
	"github.com/angelmondragon/storefront-backoffice/internal/payments"
	"github.com/angelmondragon/storefront-backoffice/internal/stock"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/migrate"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox"
	"github.com/angelmondragon/storefront-backoffice/pkg/redis"
	"github.com/angelmondragon/storefront-backoffice/pkg/stripe"
)

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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateway, err := payments.NewStripeGateway(stripeClient.CheckoutSessions())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	lookup, err := catalog.NewCachedLookup(catalog.NewRepository(conn), redisClient, cfg.Catalog.CacheTTL, logg)
	if err != nil {
		return err
	}

	stockRepo := stock.NewRepository(conn)
	ledger, err := stock.NewService(stock.ServiceParams{
		Repo:         stockRepo,
		Tx:           dbClient,
		Outbox:       emitter,
		CatalogCache: lookup,
		Metrics:      metrics.NewLedgerMetrics(registry),
		Logger:       logg,
		PageSize:     cfg.Ledger.MovementPageSize,
	})
	if err != nil {
		return err
	}
	validator, err := stock.NewValidator(stockRepo)
	if err != nil {
		return err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(conn),
		Tx:             dbClient,
		Outbox:         emitter,
		Catalog:        lookup,
		Gateway:        gateway,
		Availability:   validator,
		Metrics:        metrics.NewOrderMetrics(registry),
		Logger:         logg,
		PaymentTimeout: cfg.Payments.VerifyTimeout,
	})
	if err != nil {
		return err
	}

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Gatherer:    registry,
		Orders:      ordersSvc,
		Stock:       ledger,
		Validator:   validator,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"stripe_env":  stripeClient.Environment(),
		"idempotency": cfg.FeatureFlags.Idempotency,
	})
	logg.Info(logCtx, "starting api server")

	return api.Serve(logCtx, api.NewServer(cfg, addr, handler), logg)
}
