package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"biblioteca/internal/amqp"
	"biblioteca/internal/cli"
	"biblioteca/internal/log"
	"biblioteca/internal/sheets"
	gsheet "biblioteca/internal/sheets/google"
	mem "biblioteca/internal/sheets/memory"
	"biblioteca/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting biblioteca-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	store := cli.InitBackend(ctx, logger, cfg, nil)
	defer store.Close()

	var exporter sheets.ReportExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
	} else {
		logger.Info("Google Sheets disabled, reports are kept in memory only")
		exporter = mem.New()
	}

	w := worker.NewReportWorker(store, exporter, cfg.ReportTopN, logger)

	// Startup export covers events published while the worker was down.
	if err := w.ExportAll(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.RunPeriodic(ctx, cfg.ExportInterval)
	}()

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := client.ConsumeLoanEvents(ctx, w.HandleLoanEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Loan event consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on periodic export", "interval", cfg.ExportInterval)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	wg.Wait()
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
