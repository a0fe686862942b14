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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/content"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/likes"
	"github.com/angelmondragon/storefront-backend/internal/newsletter"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/promos"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/users"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}
	squareClient.SetNotificationURL(cfg.Storefront.NotifyURL())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, sessionManager, squareClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	squareClient *square.Client,
	registry *prometheus.Registry,
) (routes.Dependencies, error) {
	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	promoService, err := promos.NewService(promos.NewRepository(gormDB))
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartRepo := cart.NewRepository(gormDB)
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:   cartRepo,
		Tx:     dbClient,
		Promos: promoService,
		Logger: logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(gormDB), dbClient, cfg.Storefront.ProductsPageSize)
	if err != nil {
		return routes.Dependencies{}, err
	}
	contentService, err := content.NewService(content.ServiceParams{
		Repo:     content.NewRepository(gormDB),
		Cache:    redisClient,
		CacheTTL: cfg.Storefront.ContentCacheTTL,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		TaxRate:  cfg.Storefront.Tax(),
		PageSize: cfg.Storefront.OrdersPageSize,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	gateway, err := payments.NewSquareGateway(squareClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	paymentsService, err := payments.NewService(gateway, ordersService, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Carts:    cartRepo,
		Orders:   ordersRepo,
		Gateway:  gateway,
		Outbox:   outboxService,
		URLs:     cfg.Storefront,
		Metrics:  metrics.NewCheckoutMetrics(registry),
		Logger:   logg,
		Currency: cfg.Storefront.Currency,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	likesService, err := likes.NewService(likes.NewRepository(gormDB), dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	reviewsService, err := reviews.NewService(reviews.NewRepository(gormDB))
	if err != nil {
		return routes.Dependencies{}, err
	}
	newsletterService, err := newsletter.NewService(dbClient, outboxService)
	if err != nil {
		return routes.Dependencies{}, err
	}

	resetTokens, err := session.NewResetTokens(redisClient, cfg.Password.ResetTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		Users:          users.NewRepository(gormDB),
		Tx:             dbClient,
		Outbox:         outboxService,
		SessionManager: sessionManager,
		Carts:          cartService,
		Resets:         resetTokens,
		ResetURL:       cfg.Storefront.PasswordResetURL,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	webhookService, err := squarewebhook.NewService(paymentsService)
	if err != nil {
		return routes.Dependencies{}, err
	}
	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, 0, "square")
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:             dbClient,
		Redis:          redisClient,
		Sessions:       sessionManager,
		Registry:       registry,
		Auth:           authService,
		Catalog:        catalogService,
		Content:        contentService,
		Cart:           cartService,
		Promos:         promoService,
		Checkout:       checkoutService,
		Orders:         ordersService,
		Payments:       paymentsService,
		Likes:          likesService,
		Reviews:        reviewsService,
		Newsletter:     newsletterService,
		PaymentWebhook: webhookService,
		WebhookVerify:  squareClient,
		WebhookGuard:   webhookGuard,
	}, nil
}
