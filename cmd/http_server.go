package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/rentpay/internal"
	"github.com/frahmantamala/rentpay/internal/auth"
	"github.com/frahmantamala/rentpay/internal/core/events"
	"github.com/frahmantamala/rentpay/internal/gateway"
	"github.com/frahmantamala/rentpay/internal/notification"
	"github.com/frahmantamala/rentpay/internal/payment"
	paymentstore "github.com/frahmantamala/rentpay/internal/payment/postgres"
	"github.com/frahmantamala/rentpay/internal/transport/rest"
	"github.com/frahmantamala/rentpay/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment API requests and gateway webhooks`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *sqlx.DB
	GormDB         *gorm.DB
	Router         *chi.Mux
	Logger         *slog.Logger
	EventBus       *events.EventBus
	Gateway        *gateway.Client
	Verifier       *gateway.WebhookVerifier
	PaymentRepo    *paymentstore.PaymentRepository
	PaymentService *payment.PaymentService
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	paymentHandler := payment.NewHandler(deps.Logger, deps.PaymentService)
	webhookHandler := payment.NewWebhookHandler(deps.Logger, deps.PaymentService, deps.Verifier)
	tokenValidator := auth.NewTokenValidator(deps.Config.Security.JWTSecret, deps.Logger)

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.Gateway,
		paymentHandler,
		webhookHandler,
		tokenValidator,
		deps.Config.Server.AllowedOrigins,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Share the pgx connection pool with gorm. TranslateError maps
	// driver duplicate-key errors to gorm.ErrDuplicatedKey, which the
	// payment store depends on for idempotency-key arbitration.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	eventBus := events.NewEventBus(appLogger)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:     config.Gateway.BaseURL,
		APIKey:      config.Gateway.APIKey,
		ReturnURL:   config.Gateway.ReturnURL,
		CallbackURL: config.Gateway.CallbackURL,
		Timeout:     config.Gateway.Timeout,
		MaxAttempts: config.Gateway.MaxAttempts,
	}, appLogger)

	verifier := gateway.NewWebhookVerifier(config.Gateway.WebhookSecret)

	notifier := notification.NewClient(notification.Config{
		BaseURL:     config.Notification.BaseURL,
		Timeout:     config.Notification.Timeout,
		MaxAttempts: config.Notification.MaxAttempts,
	}, appLogger)
	listings := notification.NewListingClient(
		config.Notification.ListingBaseURL,
		config.Notification.Timeout,
		config.Notification.MaxAttempts,
		appLogger,
	)
	payment.NewEventHandler(notifier, listings, appLogger).RegisterHandlers(eventBus)

	paymentRepo := paymentstore.NewPaymentRepository(gormDB)
	paymentService := payment.NewPaymentService(paymentRepo, gatewayClient, eventBus, appLogger, config.Gateway.Timeout)

	return &Dependencies{
		Config:         config,
		DB:             db,
		GormDB:         gormDB,
		Router:         chi.NewRouter(),
		Logger:         appLogger,
		EventBus:       eventBus,
		Gateway:        gatewayClient,
		Verifier:       verifier,
		PaymentRepo:    paymentRepo,
		PaymentService: paymentService,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
