package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
	"biblioteca/internal/services"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "biblioteca.db"), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleSnapshot() services.Snapshot {
	loaned := time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)
	returned := loaned.Add(72 * time.Hour)
	return services.Snapshot{
		Books: []core.Book{
			{ID: "b2", Title: "Emma", Category: "Fiction", Author: "Austen", Code: "E-1", Copies: 0},
			{ID: "b1", Title: "Cosmos", Category: "Science", Author: "Sagan", Code: "C-1", Copies: 3},
		},
		Users: []core.User{
			{ID: "u1", Name: "Ada", Email: "ada@example.com", IsActive: true},
			{ID: "u2", Name: "Bob", Email: "bob@example.com", IsActive: false},
		},
		Loans: []core.Loan{
			{ID: "l1", UserID: "u1", BookID: "b2", LoanDate: loaned},
			{ID: "l2", UserID: "u1", BookID: "b1", LoanDate: loaned, ReturnDate: &returned},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	want := sampleSnapshot()

	require.NoError(t, repo.SaveSnapshot(ctx, want))
	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveSnapshotReplacesRows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, sampleSnapshot()))
	smaller := services.Snapshot{Books: []core.Book{{ID: "b9", Title: "Solo", Category: "General", Code: "S"}}}
	require.NoError(t, repo.SaveSnapshot(ctx, smaller))

	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, smaller.Books, got.Books)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Loans)
}

func TestSaveSnapshotRollsBackOnConstraint(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSnapshot(ctx, sampleSnapshot()))

	bad := services.Snapshot{Books: []core.Book{{ID: "b1", Title: "T", Code: "C", Copies: -1}}}
	require.Error(t, repo.SaveSnapshot(ctx, bad))

	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Books, 2, "failed save leaves the previous snapshot in place")
}

func TestEmptyDatabase(t *testing.T) {
	repo := newTestRepository(t)
	got, err := repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Books)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Loans)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biblioteca.db")
	first, err := NewSQLiteRepository(path, log.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteRepository(path, log.Discard())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
