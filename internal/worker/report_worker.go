package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
	"biblioteca/internal/reports"
	"biblioteca/internal/services"
	"biblioteca/internal/sheets"
)

// StateLoader fills a service with the persisted library state.
// backend.Backend satisfies it.
type StateLoader interface {
	Load(ctx context.Context, svc *services.LibraryService)
}

// ReportWorker turns loan events into fresh yearly report exports. It reads
// the persisted state rather than sharing memory with the API process.
type ReportWorker struct {
	loader   StateLoader
	exporter sheets.ReportExporter
	topN     int
	logger   *log.Logger
}

func NewReportWorker(loader StateLoader, exporter sheets.ReportExporter, topN int, logger *log.Logger) *ReportWorker {
	if topN <= 0 {
		topN = reports.DefaultTopN
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReportWorker{
		loader:   loader,
		exporter: exporter,
		topN:     topN,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

func (w *ReportWorker) aggregator(ctx context.Context) *reports.Aggregator {
	svc := services.NewLibraryService(services.WithLogger(w.logger))
	w.loader.Load(ctx, svc)
	return reports.NewAggregator(svc)
}

// HandleLoanEvent re-exports the report of the year the loan belongs to.
// A returned error makes the consumer requeue the event.
func (w *ReportWorker) HandleLoanEvent(ctx context.Context, event core.LoanEvent) error {
	w.logger.InfoContext(ctx, "Processing loan event",
		"type", event.Type,
		log.FieldLoanID, event.LoanID,
		log.FieldYear, event.Year)

	report := w.aggregator(ctx).YearReport(event.Year, w.topN)
	if err := w.exporter.ExportYearReport(ctx, report); err != nil {
		return fmt.Errorf("export %d report: %w", event.Year, err)
	}
	return nil
}

// ExportAll exports the report of every year that has loans. It keeps going
// after a failed year and returns all failures joined.
func (w *ReportWorker) ExportAll(ctx context.Context) error {
	agg := w.aggregator(ctx)
	var errs []error
	for _, year := range agg.Years() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exporter.ExportYearReport(ctx, agg.YearReport(year, w.topN)); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export report",
				log.FieldOperation, log.OpExport,
				log.FieldYear, year,
				log.FieldError, err)
			errs = append(errs, fmt.Errorf("export %d report: %w", year, err))
		}
	}
	return errors.Join(errs...)
}

// RunPeriodic calls ExportAll every interval until ctx is done. It catches
// up on events lost while no consumer was running.
func (w *ReportWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping periodic export")
			return
		case <-ticker.C:
			if err := w.ExportAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("Periodic export finished with errors", log.FieldError, err)
			}
		}
	}
}
