package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/roost/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Action: func(ctx context.Context, c *cli.Command) error {
			return withStore(ctx, c, func(store *storage.Store) error {
				fmt.Println("Optimizing full-text index and running PRAGMA optimize...")
				if err := store.Optimize(ctx); err != nil {
					return err
				}
				fmt.Println("✓ Optimize completed")
				return nil
			})
		},
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run integrity checks on the database",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "quick",
						Usage: "Skip the FTS5 index check",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(store *storage.Store) error {
						fmt.Printf("Checking %s... ", store.Path())
						if err := store.IntegrityCheck(ctx, !c.Bool("quick")); err != nil {
							fmt.Printf("✗ FAILED - %v\n", err)
							fmt.Println("To fix FTS index corruption, run: roost optimize fts-rebuild")
							return fmt.Errorf("integrity check failed")
						}
						fmt.Println("✓ OK")
						return nil
					})
				},
			},
			{
				Name:  "fts-rebuild",
				Usage: "Rebuild the listing full-text index",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(store *storage.Store) error {
						if err := store.RebuildFTS(ctx); err != nil {
							return err
						}
						fmt.Println("✓ FTS index rebuilt")
						return nil
					})
				},
			},
			{
				Name:  "analyze",
				Usage: "Run ANALYZE to update query planner statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(store *storage.Store) error {
						if err := store.Analyze(ctx); err != nil {
							return fmt.Errorf("analyze: %w", err)
						}
						fmt.Println("✓ ANALYZE completed")
						return nil
					})
				},
			},
			{
				Name:  "vacuum",
				Usage: "Run VACUUM to defragment the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(store *storage.Store) error {
						if err := store.Vacuum(ctx); err != nil {
							return err
						}
						fmt.Println("✓ VACUUM completed")
						return nil
					})
				},
			},
		},
	}
}

func withStore(ctx context.Context, c *cli.Command, fn func(*storage.Store) error) error {
	_, store, err := loadStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)
	return fn(store)
}
