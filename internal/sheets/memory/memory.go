// Package memory is a ReportExporter that keeps the latest report of each
// year in process. It stands in for Google Sheets when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"biblioteca/internal/core"
	ports "biblioteca/internal/sheets"
)

var _ ports.ReportExporter = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	reports map[int]core.YearReport
	exports int
}

func New() *Store {
	return &Store{reports: make(map[int]core.YearReport)}
}

func (s *Store) ExportYearReport(_ context.Context, report core.YearReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Year] = report
	s.exports++
	return nil
}

// Report returns the last report exported for year.
func (s *Store) Report(year int) (core.YearReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[year]
	return r, ok
}

// Years lists the exported years in ascending order.
func (s *Store) Years() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.reports))
	for y := range s.reports {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Exports counts every ExportYearReport call.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
