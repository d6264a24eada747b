package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services"
	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/events"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/locks"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/razorpay"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/session"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/razorpay-reconciler/internal/logging"
	"github.com/DanielPopoola/razorpay-reconciler/internal/metrics"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the checkout page and payment callback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.GetLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting razorpay reconciler",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"test_mode", cfg.Gateway.TestMode,
		"log_level", cfg.Logger.Level,
	)

	metrics.Setup(cfg.Metrics, logger)

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	ledger := postgres.NewLedgerRepository(db)

	client, err := razorpay.NewClient(cfg.Gateway)
	if err != nil {
		return err
	}
	_, secret, err := cfg.Gateway.Credentials()
	if err != nil {
		return err
	}
	gateway := razorpay.NewBreakerClient(client, cfg.Breaker, logger)

	pingers := map[string]handlers.Pinger{"database": db, "gateway": gateway}

	var (
		sessions application.SessionProvider
		locker   application.TransactionLocker
	)
	if cfg.Redis.Addr != "" {
		rdb := session.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb, cfg.Session.OrderTTL)
		locker = session.NewRedisLocker(rdb, cfg.Session.LockTTL, logger)
		pingers["redis"] = pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warn("redis not configured, using in-process sessions and locks")
		sessions = session.NewMemoryStore(cfg.Session.OrderTTL)
		locker = locks.NewKeyedMutex()
	}

	var publisher application.EventPublisher = events.NoopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewWriter(cfg.Events))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	orders := services.NewOrderStore(services.NewRetryingOrders(gateway, cfg.Retry, logger), logger)

	checkoutService := services.NewCheckoutService(ledger, orders, services.CheckoutSettings{
		KeyID:          client.KeyID(),
		GatewayID:      cfg.Gateway.ConfigID,
		PublicURL:      cfg.Server.PublicURL,
		CompanyName:    cfg.Gateway.CompanyName,
		CompanyLogoURL: cfg.Gateway.CompanyLogoURL,
	})
	reconcileService := services.NewReconciliationService(
		ledger,
		gateway,
		services.NewSignatureVerifier(secret),
		orders,
		locker,
		publisher,
		logger,
		cfg.Primary.Debug,
	)

	h := handlers.NewHandlers(
		checkoutService,
		reconcileService,
		ledger,
		sessions,
		pingers,
		cfg.Gateway.ConfigID,
		cfg.Server.PublicURL,
		logger,
	)

	mux := http.NewServeMux()
	h.Register(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Timeout(cfg.Server.RequestTimeout)(handler)
	handler = middleware.Logging(logger)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
	return nil
}
