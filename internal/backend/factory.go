package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"pasti/internal/amqp"
	"pasti/internal/flatfile"
	"pasti/internal/memory"
	"pasti/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the stores for config.Type and, when an AMQP URL is
// set, the event publisher. A broker that cannot be reached is logged and
// the backend runs without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case FileBackend:
		result = f.createFileBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			result.Cleanup = chain(result.Cleanup, client.Close)
		}
	}
	return result, nil
}

func (f *DefaultFactory) createFileBackend(config Config) *BackendResult {
	catalog := flatfile.NewCatalog(filepath.Join(config.DataDirectory, flatfile.CatalogFile))
	ledgers := flatfile.NewLedgers(config.DataDirectory)

	f.logger.Info("Initialized file backend", "data_directory", config.DataDirectory)

	return &BackendResult{Catalog: catalog, Meals: ledgers, Weights: ledgers}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Catalog: repo,
		Meals:   repo,
		Weights: repo,
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Catalog: store, Meals: store, Weights: store}
}

// chain runs both cleanups, later ones first, joining their errors.
func chain(first, second CleanupFunc) CleanupFunc {
	if first == nil {
		return second
	}
	return func() error {
		return errors.Join(second(), first())
	}
}
