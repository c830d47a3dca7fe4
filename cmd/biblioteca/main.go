package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"biblioteca/internal/amqp"
	"biblioteca/internal/cache"
	"biblioteca/internal/cli"
	apphttp "biblioteca/internal/http"
	"biblioteca/internal/log"
	"biblioteca/internal/metrics"
	"biblioteca/internal/reports"
	"biblioteca/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	m := metrics.New()
	opts := []services.Option{services.WithLogger(logger), services.WithMetrics(m)}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Loans still work; the worker catches up on its periodic export.
			logger.Warn("AMQP unavailable, loan events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Publishing loan events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	library := services.NewLibraryService(opts...)

	store := cli.InitBackend(ctx, logger, cfg, m)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	agg := reports.NewAggregator(library,
		reports.WithCache(cache.NewLRUCache[any](cfg.ReportCacheSize, cfg.ReportCacheTTL)))

	srv := apphttp.NewServer(":"+cfg.Port, library, agg, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DefaultTopN:        cfg.ReportTopN,
	})

	store.Load(ctx, library)
	srv.SetReady(true)
	logger.Info("Library loaded",
		log.FieldOperation, log.OpStartup,
		"books", len(library.Books()),
		"users", len(library.Users()),
		"loans", len(library.Loans()))

	go cli.RunAutosave(ctx, logger, store, library, cfg.AutosaveInterval)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting biblioteca server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}

	store.Save(shutdownCtx, library)
	logger.Info("Library saved, server stopped", log.FieldOperation, log.OpShutdown)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
