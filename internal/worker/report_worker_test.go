package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
	"biblioteca/internal/services"
	"biblioteca/internal/sheets/memory"
)

// snapshotLoader restores a fixed snapshot, standing in for a backend.
type snapshotLoader struct {
	snap services.Snapshot
}

func (l snapshotLoader) Load(_ context.Context, svc *services.LibraryService) {
	svc.Restore(l.snap)
}

type failingExporter struct {
	failYear int
	calls    int
}

func (f *failingExporter) ExportYearReport(_ context.Context, r core.YearReport) error {
	f.calls++
	if r.Year == f.failYear {
		return errors.New("quota exceeded")
	}
	return nil
}

func fixture() services.Snapshot {
	at := func(y int, m time.Month) time.Time { return time.Date(y, m, 5, 10, 0, 0, 0, time.UTC) }
	return services.Snapshot{
		Books: []core.Book{
			{ID: "b1", Title: "Dune", Category: "Fiction", Code: "D", Copies: 1},
			{ID: "b2", Title: "Cosmos", Category: "Science", Code: "C", Copies: 1},
		},
		Users: []core.User{{ID: "u1", Name: "Ada", Email: "ada@example.com", IsActive: true}},
		Loans: []core.Loan{
			{ID: "l1", UserID: "u1", BookID: "b1", LoanDate: at(2024, time.March)},
			{ID: "l2", UserID: "u1", BookID: "b1", LoanDate: at(2024, time.March)},
			{ID: "l3", UserID: "u1", BookID: "b2", LoanDate: at(2023, time.June)},
		},
	}
}

func TestHandleLoanEventExportsEventYear(t *testing.T) {
	store := memory.New()
	w := NewReportWorker(snapshotLoader{fixture()}, store, 5, log.Discard())

	err := w.HandleLoanEvent(context.Background(), core.LoanEvent{Type: core.LoanCreated, LoanID: "l2", Year: 2024})
	require.NoError(t, err)

	assert.Equal(t, []int{2024}, store.Years())
	r, ok := store.Report(2024)
	require.True(t, ok)
	require.Len(t, r.TopBooks, 1)
	assert.Equal(t, core.RankedCount{ID: "b1", Label: "Dune", Count: 2}, r.TopBooks[0])
	assert.Equal(t, []string{"Fiction", "Science"}, r.Categories)
	assert.Equal(t, 2, r.Matrix.At(3, 0))
}

func TestHandleLoanEventPropagatesExportError(t *testing.T) {
	exp := &failingExporter{failYear: 2024}
	w := NewReportWorker(snapshotLoader{fixture()}, exp, 0, log.Discard())

	err := w.HandleLoanEvent(context.Background(), core.LoanEvent{Type: core.LoanReturned, LoanID: "l1", Year: 2024})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestExportAllContinuesAfterFailure(t *testing.T) {
	exp := &failingExporter{failYear: 2023}
	w := NewReportWorker(snapshotLoader{fixture()}, exp, 5, log.Discard())

	err := w.ExportAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, exp.calls, "both years attempted")
	assert.Contains(t, err.Error(), "2023")
}

func TestRunPeriodicStopsOnCancel(t *testing.T) {
	store := memory.New()
	w := NewReportWorker(snapshotLoader{fixture()}, store, 5, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.RunPeriodic(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Exports() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not return after cancel")
	}
	assert.Equal(t, []int{2023, 2024}, store.Years())
}
