package main

import (
	"context"
	"errors"
	"os"
	"time"
	_ "time/tzdata"

	"expensedash/internal/amqp"
	"expensedash/internal/backend"
	"expensedash/internal/cli"
	applog "expensedash/internal/log"
	"expensedash/internal/services"
	gsheet "expensedash/internal/sheets/google"
	"expensedash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting expensedash-worker", applog.FieldOperation, applog.OpStartup)

	if !cfg.ExportEnabled() {
		logger.Error("Spreadsheet export is not configured - set GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

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

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		ExpensesSheet:   cfg.GoogleSheetName,
		SummarySheet:    cfg.GoogleSummarySheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	processor := services.NewExportProcessor(result.Backend, sheetsClient, services.ExportProcessorConfig{
		Interval: cfg.SyncInterval,
		Debounce: 2 * time.Second,
		Currency: cfg.Currency,
		Location: cfg.Location(),
	}, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - exporting on the sync interval only", "interval", cfg.SyncInterval)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Export processor stop error", applog.FieldError, err)
		}
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

	if err := processor.Start(shutdownCtx); err != nil {
		logger.Error("Failed to start export processor", applog.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		exportWorker := worker.NewExportWorker(processor, logger)
		go func() {
			err := exportWorker.Run(shutdownCtx, amqpClient, amqp.DurableQueue(cfg.AMQPQueue))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker shutdown complete")
}
