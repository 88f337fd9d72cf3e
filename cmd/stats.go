package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/roost/pkg/storage"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show database statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

// showStats displays storage statistics
func showStats(ctx context.Context, configPath string) error {
	_, store, err := loadStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	formatStats(store.Path(), stats)
	return nil
}

func formatStats(path string, stats *storage.Stats) {
	fmt.Printf("Database: %s\n\n", path)
	fmt.Printf("  Listings:      %d (%d published)\n", stats.Listings, stats.PublishedListings)
	fmt.Printf("  Translations:  %d\n", stats.Translations)
	fmt.Printf("  Images:        %d\n", stats.Images)
	fmt.Printf("  Categories:    %d\n", stats.Categories)
	fmt.Printf("  Sessions:      %d\n", stats.Sessions)
}
