package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"expensedash/internal/amqp"
	"expensedash/internal/backend"
	"expensedash/internal/cli"
	"expensedash/internal/config"
	applog "expensedash/internal/log"
	"expensedash/internal/services"
)

var (
	flagConfig  string
	flagBackend string
	flagVerbose bool
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "expensectl",
	Short:         "Inspect and edit expenses from the terminal",
	Long:          "List, summarize, add and delete expenses using the same backend configuration as the dashboard server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "TOML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Data backend: memory, sqlite or remote (overrides DATA_BACKEND)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log to stderr")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "Timeout for backend calls")
}

// app holds the services a command runs against.
type app struct {
	dashboard *services.DashboardService
	expenses  *services.ExpenseService
	close     func()
}

// loadApp builds the configured backend and services. Logs go to stderr only
// with --verbose so that command output stays clean.
func loadApp(ctx context.Context) (*app, error) {
	cli.LoadEnvFile()
	if flagConfig != "" {
		if err := os.Setenv("CONFIG_FILE", flagConfig); err != nil {
			return nil, err
		}
	}
	if flagBackend != "" {
		if err := os.Setenv("DATA_BACKEND", flagBackend); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := applog.Discard()
	if flagVerbose {
		lvl := applog.ParseLevel(cfg.LogLevel)
		logger = applog.New(applog.Config{
			Level:     lvl,
			Component: applog.ComponentCLI,
			Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}),
		})
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	dashboard := services.NewDashboardService(result.Backend, services.DashboardConfig{
		Currency: cfg.Currency,
		Locale:   cfg.Locale,
		Location: cfg.Location(),
	}, nil, logger)

	// Changes are announced so that running servers drop their caches.
	var (
		amqpClient *amqp.Client
		publisher  services.EventPublisher
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, changes will not be announced", applog.FieldError, err)
		} else {
			publisher = amqpClient
		}
	}
	expenses := services.NewExpenseService(result.Backend, publisher, "expensectl-"+uuid.NewString(), logger)

	return &app{
		dashboard: dashboard,
		expenses:  expenses,
		close: func() {
			if amqpClient != nil {
				_ = amqpClient.Close()
			}
			if result.Cleanup != nil {
				_ = result.Cleanup()
			}
		},
	}, nil
}

// withApp runs fn with a loaded app and a context bounded by --timeout.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.close()
	return fn(ctx, a)
}
