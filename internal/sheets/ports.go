package sheets

import (
	"context"

	"biblioteca/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter publishes a yearly loan report somewhere people read it.
	// Exporting the same year again replaces the previous export.
	ReportExporter interface {
		ExportYearReport(ctx context.Context, report core.YearReport) error
	}
)
