package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/config"
	"biblioteca/internal/core"
	"biblioteca/internal/log"
	"biblioteca/internal/services"
)

func seededService(t *testing.T) *services.LibraryService {
	t.Helper()
	svc := services.NewLibraryService(services.WithLogger(log.Discard()))
	book, err := core.NewBook("Dune", "Herbert", "D-1", "Fiction", 2)
	require.NoError(t, err)
	require.NoError(t, svc.AddBook(book))
	user, err := core.NewUser("Ada", "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.AddUser(user))
	_, err = svc.CreateLoan(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	return svc
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "memory"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDir: "d"})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLiteBackend, DataDirectory: "d", SQLiteDBPath: "x.db"}, cfg)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Type: JSONBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: "sheets"}.Validate())
	assert.ElementsMatch(t, []BackendType{JSONBackend, SQLiteBackend}, GetBackendTypes())
}

func TestBackendsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	configs := map[string]Config{
		"json":   {Type: JSONBackend, DataDirectory: filepath.Join(dir, "data")},
		"sqlite": {Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "biblioteca.db")},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			factory := NewFactory(log.Discard(), nil)

			b, err := factory.CreateBackend(ctx, cfg)
			require.NoError(t, err)
			src := seededService(t)
			b.Save(ctx, src)
			require.NoError(t, b.Close())

			b, err = factory.CreateBackend(ctx, cfg)
			require.NoError(t, err)
			defer b.Close()
			dst := services.NewLibraryService(services.WithLogger(log.Discard()))
			b.Load(ctx, dst)

			assert.Equal(t, src.Books(), dst.Books())
			assert.Equal(t, src.Users(), dst.Users())
			assert.Len(t, dst.ActiveLoans(), 1)
			assert.Equal(t, src.Loans()[0].ID, dst.Loans()[0].ID)
		})
	}
}

func TestJSONBackendMissingFolder(t *testing.T) {
	b, err := NewFactory(log.Discard(), nil).CreateBackend(context.Background(),
		Config{Type: JSONBackend, DataDirectory: filepath.Join(t.TempDir(), "nope")})
	require.NoError(t, err)

	svc := services.NewLibraryService(services.WithLogger(log.Discard()))
	b.Load(context.Background(), svc)
	assert.Empty(t, svc.Books())
}
