package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rilegato/rilegato-backend/api/routes"
	cartsvc "github.com/rilegato/rilegato-backend/internal/cart"
	"github.com/rilegato/rilegato-backend/internal/catalog"
	shippingsvc "github.com/rilegato/rilegato-backend/internal/shipping"
	"github.com/rilegato/rilegato-backend/pkg/auth/session"
	"github.com/rilegato/rilegato-backend/pkg/config"
	"github.com/rilegato/rilegato-backend/pkg/db"
	"github.com/rilegato/rilegato-backend/pkg/logger"
	"github.com/rilegato/rilegato-backend/pkg/metrics"
	"github.com/rilegato/rilegato-backend/pkg/migrate"
	"github.com/rilegato/rilegato-backend/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.Session)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	shippingMetrics := metrics.NewShippingMetrics(prometheus.DefaultRegisterer)

	catalogRepo := catalog.NewRepository(dbClient.DB())

	cartService, err := cartsvc.NewService(
		cartsvc.NewRepository(dbClient.DB()),
		catalogRepo,
		dbClient,
		shippingMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	resolver, err := shippingsvc.NewResolver(catalogRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create weight resolver", err)
		os.Exit(1)
	}

	carrierClient, err := shippingsvc.NewCarrierClient(
		cfg.Carrier.BaseURL,
		cfg.Carrier.APIKey,
		shippingsvc.WithTimeout(cfg.Carrier.Timeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier client", err)
		os.Exit(1)
	}

	quoteService, err := shippingsvc.NewService(
		resolver,
		shippingsvc.NewQuoteCache(cfg.Quote.CacheTTL),
		carrierClient,
		shippingMetrics,
		logg,
		cfg.Quote.WeightBucketGram,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create quote service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, cartService, quoteService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
