package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storefront/storefront/cmd/storefront/cli"
	"github.com/storefront/storefront/internal/admin"
	"github.com/storefront/storefront/internal/app"
	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/catalog"
	"github.com/storefront/storefront/internal/checkout"
	"github.com/storefront/storefront/internal/observability"
	"github.com/storefront/storefront/internal/orders"
	"github.com/storefront/storefront/internal/platform/cache"
	"github.com/storefront/storefront/internal/platform/db"
	"github.com/storefront/storefront/internal/shared"
	"github.com/storefront/storefront/jobs"
)

const sessionCookie = "storefront_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr, cfg.LowStockThreshold, cfg.IdempotencyRetention)
		code := jobsCLI.Run(ctx, os.Args[2:], os.Stdout)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		os.Exit(code)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts, cfg.PasswordResetURL())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	if err := catalogCache.Listen(ctx, func(version int64) {
		logger.Debug("catalog version bumped", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("catalog bump subscription", slog.Any("error", err))
	}
	catalogService := catalog.NewService(catalog.NewRepository(pool), catalogCache, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	orderService := orders.NewService(orders.NewRepository(pool), logger,
		orders.WithMetrics(metrics),
		orders.WithCatalog(catalogService),
		orders.WithNotifier(jobClient),
	)

	cartStorage := cart.NewRedisStorage(redisClient, cfg.SessionTTL)
	cartHandler := cart.NewHandler(logger, cartStorage, catalogService)

	idempotency := shared.NewIdempotencyStore(pool)
	checkoutService := checkout.NewService(
		checkout.NewRedisStateStore(redisClient, cfg.SessionTTL),
		cartStorage,
		orderService,
		idempotency,
		logger,
	)
	checkoutHandler := checkout.NewHandler(logger, checkoutService)

	authService := auth.NewService(
		auth.NewRepository(pool),
		auth.NewRedisResetTokens(redisClient, cfg.PasswordResetTTL),
		jobClient,
		logger,
	)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	authorizer := admin.NewAuthorizer(logger,
		admin.NewStaticClaims(cfg.AdminEmails),
		admin.NewProfileClaims(pool),
	)
	ordersHandler := orders.NewHandler(logger, orderService, authorizer)
	adminService := admin.NewService(catalogService, orderService, shared.NewAuditLogger(pool), cfg.LowStockThreshold, logger)
	adminHandler := admin.NewHandler(logger, adminService, authorizer)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		Metrics:         metrics,
		AuthHandler:     authHandler,
		CatalogHandler:  catalogHandler,
		CartHandler:     cartHandler,
		CheckoutHandler: checkoutHandler,
		OrdersHandler:   ordersHandler,
		AdminHandler:    adminHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
