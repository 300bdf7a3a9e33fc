package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"expensedash/internal/amqp"
	"expensedash/internal/backend"
	"expensedash/internal/cache"
	"expensedash/internal/cli"
	apphttp "expensedash/internal/http"
	applog "expensedash/internal/log"
	"expensedash/internal/services"
	"expensedash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger)
	cacheManager.StartCleanup(time.Minute)

	dashboard := services.NewDashboardService(result.Backend, services.DashboardConfig{
		Currency:  cfg.Currency,
		Locale:    cfg.Locale,
		Location:  cfg.Location(),
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
	}, cacheManager, logger)

	// Events are tagged with this instance so it can skip its own changes.
	source := uuid.NewString()

	var (
		amqpClient *amqp.Client
		publisher  services.EventPublisher
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("AMQP events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	expenses := services.NewExpenseService(result.Backend, publisher, source, logger)
	expenses.OnChange(dashboard.Invalidate)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Dashboard:          dashboard,
		Expenses:           expenses,
		Ready:              result.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	if amqpClient != nil {
		invalidator := worker.NewCacheInvalidator(source, dashboard.Invalidate, logger)
		go func() {
			if err := invalidator.Run(shutdownCtx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Cache invalidation consumer stopped", applog.FieldError, err)
			}
		}()
	}

	logger.Info("Starting expensedash server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"currency", cfg.Currency,
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
