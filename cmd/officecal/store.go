package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/officecal/internal/config"
	"github.com/officecal/internal/logger"
	"github.com/officecal/internal/observability"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/storage/firestore"
	"github.com/officecal/internal/storage/postgres"
)

// openStore connects the configured backend and wraps it with metrics.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	var (
		s   storage.Store
		err error
	)
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		db, dbErr := storage.New(cfg.DatabasePath)
		if dbErr != nil {
			return nil, fmt.Errorf("open sqlite database: %w", dbErr)
		}
		db.SetPollInterval(cfg.PollInterval)
		s = db
	case config.BackendPostgres:
		s, err = postgres.Open(ctx, cfg.PostgresURL)
	case config.BackendFirestore:
		fs, fsErr := firestore.Open(ctx, cfg.FirestoreProject, cfg.FirestoreCollection)
		if fsErr != nil {
			return nil, fsErr
		}
		fs.OnListenError = func(user string, err error) {
			logger.Warning("Live updates for %s stopped: %v", user, err)
		}
		s = fs
	case config.BackendMemory:
		s = storage.NewMemory()
	default:
		return nil, &config.ValidationError{Field: "StorageBackend", Message: fmt.Sprintf("unknown backend %q", cfg.StorageBackend)}
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Using %s storage", cfg.StorageBackend)
	return observability.Instrument(string(cfg.StorageBackend), s), nil
}
