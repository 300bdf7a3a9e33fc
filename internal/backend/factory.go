package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	applog "expensedash/internal/log"
	"expensedash/internal/memory"
	"expensedash/internal/remote"
	"expensedash/internal/storage"
)

const defaultDataDir = "data"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// Categories listed in the seed file are upserted on every start.
	if err := repo.SeedCategories(ctx, memory.SeedCategories(dataDir(config))); err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		applog.FieldBackend, SQLiteBackend,
		"db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
		Ready:   repo.Ping,
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	timeout := config.RemoteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	opts := []remote.Option{
		remote.WithHTTPClient(&http.Client{Timeout: timeout}),
		remote.WithLogger(f.logger),
	}
	if config.Location != nil {
		opts = append(opts, remote.WithLocation(config.Location))
	}

	client, err := remote.New(config.RemoteAPIURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote client: %w", err)
	}

	f.logger.Info("Initialized remote backend",
		applog.FieldBackend, RemoteBackend,
		"url", config.RemoteAPIURL,
		"timeout", timeout)

	return &BackendResult{
		Backend: client,
		Ready: func(ctx context.Context) error {
			_, err := client.ListCategories(ctx)
			return err
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dir := dataDir(config)
	store := memory.NewFromFiles(dir)

	f.logger.Info("Initialized memory backend",
		applog.FieldBackend, MemoryBackend,
		"data_directory", dir)

	return &BackendResult{Backend: store}, nil
}

func dataDir(config Config) string {
	if config.DataDirectory == "" {
		return defaultDataDir
	}
	return config.DataDirectory
}
