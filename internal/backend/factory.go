package backend

import (
	"context"
	"fmt"

	"biblioteca/internal/log"
	"biblioteca/internal/metrics"
	"biblioteca/internal/services"
	"biblioteca/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case JSONBackend:
		return f.createJSONBackend(config), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createJSONBackend(config Config) Backend {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultDataDirectory
	}
	f.logger.Info("Initialized json backend", "data_directory", dir)
	return &jsonBackend{dir: dir}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (Backend, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &sqliteBackend{repo: repo, logger: f.logger, metrics: f.metrics}, nil
}

// jsonBackend is the data folder with one JSON file per collection. The
// service already logs and counts per-file failures.
type jsonBackend struct {
	dir string
}

func (b *jsonBackend) Load(_ context.Context, svc *services.LibraryService) {
	svc.LoadAll(b.dir)
}

func (b *jsonBackend) Save(_ context.Context, svc *services.LibraryService) {
	svc.SaveAll(b.dir)
}

func (b *jsonBackend) Close() error { return nil }

type sqliteBackend struct {
	repo    *storage.SQLiteRepository
	logger  *log.Logger
	metrics *metrics.Metrics
}

func (b *sqliteBackend) Load(ctx context.Context, svc *services.LibraryService) {
	snap, err := b.repo.LoadSnapshot(ctx)
	if err != nil {
		b.metrics.PersistenceFailed("snapshot", log.OpLoad)
		b.logger.WarnContext(ctx, "Failed to load snapshot, keeping current state",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
		return
	}
	svc.Restore(snap)
	b.logger.InfoContext(ctx, "Snapshot loaded",
		"books", len(snap.Books), "users", len(snap.Users), "loans", len(snap.Loans))
}

func (b *sqliteBackend) Save(ctx context.Context, svc *services.LibraryService) {
	if err := b.repo.SaveSnapshot(ctx, svc.Snapshot()); err != nil {
		b.metrics.PersistenceFailed("snapshot", log.OpSave)
		b.logger.WarnContext(ctx, "Failed to save snapshot",
			log.FieldOperation, log.OpSave, log.FieldError, err)
	}
}

func (b *sqliteBackend) Close() error {
	return b.repo.Close()
}
