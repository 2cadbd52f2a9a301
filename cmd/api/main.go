package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/cache"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
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

	cfg.Service.Kind = "api"

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

	dbStats, err := dbClient.StatsCollector("storefront")
	if err != nil {
		logg.Error(context.Background(), "failed to build db stats collector", err)
		os.Exit(1)
	}
	registry := metrics.NewRegistry(dbStats)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to build api dependencies", err)
		os.Exit(1)
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	logg.Info(ctx, "api server shutting down gracefully")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (routes.Dependencies, error) {
	calculator, err := pricing.NewCalculatorFromConfig(cfg.Cart)
	if err != nil {
		return routes.Dependencies{}, err
	}
	responseCache, err := cache.NewRedis(redisClient, cfg.Cache.Prefix)
	if err != nil {
		return routes.Dependencies{}, err
	}
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return routes.Dependencies{}, err
	}

	commerceMetrics := metrics.NewCommerceMetrics(registry)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger := inventory.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	productRepo := product.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	userService, err := users.NewService(userRepo, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	productService, err := product.NewService(productRepo, ledger, dbClient, responseCache, cfg.Cache.ProductTTL, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repository:  cartRepo,
		Tx:          dbClient,
		Products:    productRepo,
		Ledger:      ledger,
		Calculator:  calculator,
		Cache:       responseCache,
		CacheTTL:    cfg.Cache.TTL,
		Outbox:      emitter,
		Metrics:     commerceMetrics,
		Logger:      logg,
		Expiry:      cfg.Cart.Expiry(),
		MaxAttempts: cfg.Cart.MaxMutationAttempts,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:          dbClient,
		Carts:       cartRepo,
		Orders:      orderRepo,
		Ledger:      ledger,
		Outbox:      emitter,
		Calculator:  calculator,
		Cache:       responseCache,
		CacheTTL:    cfg.Cache.TTL,
		Metrics:     commerceMetrics,
		Logger:      logg,
		CartExpiry:  cfg.Cart.Expiry(),
		MaxAttempts: cfg.Cart.MaxMutationAttempts,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderService, err := orders.NewService(orderRepo, dbClient, ledger, emitter, commerceMetrics, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	wishlistService, err := wishlist.NewService(wishlist.NewRepository(dbClient.DB()), productRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Store:    redisClient,
		Sessions: sessionManager,
		Gatherer: registry,
		Auth:     authService,
		Users:    userService,
		Products: productService,
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Wishlist: wishlistService,
	}, nil
}
