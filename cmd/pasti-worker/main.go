package main

import (
	"context"
	"errors"

	"pasti/internal/amqp"
	"pasti/internal/backend"
	"pasti/internal/cli"
	"pasti/internal/config"
	applog "pasti/internal/log"
	gsheet "pasti/internal/sheets/google"
	"pasti/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	if envErr != nil {
		cli.Fatal(logger, "Failed to load .env file", envErr)
	}

	logger.Info("Starting pasti-worker")

	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	// The worker reads the ledgers for backfill; it never publishes.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	backendCfg.AMQPURL = ""
	stores, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer stores.Close()

	creds, err := gsheet.CredentialsFromEnv(ctx)
	if err != nil {
		cli.Fatal(logger, "Failed to read Google credentials", err)
	}
	exporter, err := gsheet.New(ctx, gsheet.Settings{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		MealsSheet:    cfg.GoogleMealsSheetName,
		WeightsSheet:  cfg.GoogleWeightsSheetName,
	}, creds...)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exportWorker := worker.NewExportWorker(exporter, stores.Meals, stores.Weights, cfg.ExportConcurrency)

	if cfg.ExportBackfill {
		logger.Info("Rebuilding export from ledgers", applog.FieldOperation, applog.OpBackfill, "users", len(cfg.Users))
		if err := exportWorker.Backfill(ctx, cli.Users(cfg)); err != nil {
			// Live messages are still worth consuming.
			logger.Error("Export backfill failed", applog.FieldError, err.Error(), applog.FieldOperation, applog.OpBackfill)
		}
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	logger.Info("Consuming entry events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	if err := amqpClient.Consume(ctx, exportWorker.HandleEntryRecorded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
		return
	}
	logger.Info("Worker shutdown complete")
}
