package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/roost/pkg/config"
	"github.com/rubiojr/roost/pkg/db"
	"github.com/rubiojr/roost/pkg/storage"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return RunMigrations(ctx, c.String("config"), c.Bool("status"))
		},
	}
}

// RunMigrations handles the migration process (exported for testing)
func RunMigrations(ctx context.Context, configPath string, statusOnly bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dbPath := cfg.DBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) && statusOnly {
		fmt.Printf("Database does not exist, will be created on first use: %s\n", dbPath)
		return nil
	}
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	store, err := storage.Open(dbPath, cfg.DefaultLocale)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeStore(store)

	if statusOnly {
		if err := showMigrationStatus(ctx, db.NewMigrationManager(store.DB()), dbPath); err != nil {
			return fmt.Errorf("showing migration status: %w", err)
		}
		fmt.Println("\nMigration status check completed")
		return nil
	}

	n, err := store.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	if n == 0 {
		fmt.Println("Database is up to date")
		return nil
	}
	fmt.Printf("Applied %d migrations to %s\n", n, dbPath)
	return nil
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(ctx context.Context, manager *db.MigrationManager, dbPath string) error {
	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Available migrations: %d\n", len(status.Available))
	fmt.Printf("Applied migrations: %d\n", len(status.Applied))
	fmt.Printf("Pending migrations: %d\n", len(status.Pending))

	if len(status.Applied) > 0 {
		fmt.Println("\nApplied:")
		for _, m := range status.Applied {
			fmt.Printf("  %03d_%s (applied %s)\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
	}
	if len(status.Pending) > 0 {
		fmt.Println("\nPending:")
		for _, m := range status.Pending {
			fmt.Printf("  %03d_%s\n", m.Version, m.Name)
		}
	}
	return nil
}
