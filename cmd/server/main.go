package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/subberhq/subber/internal"
	"github.com/subberhq/subber/internal/auth"
	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/events"
	"github.com/subberhq/subber/internal/handler/api"
	"github.com/subberhq/subber/internal/handler/webhook"
	"github.com/subberhq/subber/internal/middleware"
	"github.com/subberhq/subber/internal/repository"
	"github.com/subberhq/subber/internal/router"
	"github.com/subberhq/subber/internal/service"
	"github.com/subberhq/subber/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	repo := repository.New(pool)

	// Initialize Stripe billing gateway
	logger.Info("Initializing Stripe billing gateway...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	gateway, err := billing.NewStripeGateway(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe gateway: %w", err)
	}
	logger.Info("Stripe billing gateway initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize event publisher
	var publisher events.Publisher
	if cfg.Nats.URL != "" {
		natsPublisher, err := events.NewNatsPublisher(cfg.Nats.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS event publisher initialized", "url", cfg.Nats.URL)
	} else {
		publisher = events.NoopPublisher{}
		logger.Info("Event publishing disabled, using noop publisher")
	}

	// Initialize business metrics
	telemetry.Business = telemetry.InitBusinessMetrics("subber")

	// Initialize services
	planResolver := service.NewPlanResolver(repo, gateway, logger)
	subscriptionService := service.NewSubscriptionService(repo, gateway, planResolver, publisher, logger)
	accountService := service.NewAccountService(repo, gateway, logger)
	reconciler := service.NewInvoiceReconciler(repo, gateway, publisher, logger)

	// Initialize handlers
	subscriptionHandler := api.NewSubscriptionHandler(subscriptionService, logger)
	billingHandler := api.NewBillingHandler(accountService, logger)

	dispatcher := webhook.NewDispatcher(gateway, cfg.Stripe.WebhookSecret, logger)
	webhook.RegisterDefaultHandlers(dispatcher, reconciler, logger)

	authenticator := auth.NewTokenAuthenticator(repo)

	// Initialize middleware
	metrics := middleware.NewMetrics("subber")

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		router.Logger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Webhooks authenticate via signature, not bearer token
	r.Post("/webhooks/stripe", dispatcher.HandleWebhook)

	// Authenticated API routes
	apiRouter := r.Group(
		middleware.RequireIdentity(authenticator),
		middleware.WithRequestLogger(logger),
	)
	apiRouter.Post("/subscriptions", subscriptionHandler.Create)
	apiRouter.Get("/subscriptions", subscriptionHandler.List)
	apiRouter.Post("/billing/sources", billingHandler.AddPaymentSource)
	apiRouter.Delete("/billing/sources", billingHandler.RemovePaymentSource)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr, "env", cfg.Env)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
