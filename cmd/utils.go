package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/roost/pkg/config"
	"github.com/rubiojr/roost/pkg/storage"
)

// openStore opens the configured database, creating the schema on a fresh
// database. Outdated databases are refused until 'roost migrate' runs.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	store, err := storage.Open(cfg.DBPath(), cfg.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// loadStore loads the configuration at configPath and opens its store.
func loadStore(ctx context.Context, configPath string) (*config.Config, *storage.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Printf("Warning: failed to close store: %v\n", err)
	}
}
