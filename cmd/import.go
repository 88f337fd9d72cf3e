package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/roost/pkg/storage"
	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import categories and listings from a YAML seed file",
		ArgsUsage: "<file.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate the file without writing to the database",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("expected one seed file, got %d arguments", c.Args().Len())
			}
			return importSeed(ctx, c.String("config"), c.Args().First(), c.Bool("dry-run"))
		},
	}
}

// importSeed upserts the listings of a seed file. Importing the same file
// twice leaves the database unchanged.
func importSeed(ctx context.Context, configPath, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	seed, err := storage.ParseSeed(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if dryRun {
		fmt.Printf("%s is valid: %d categories, %d listings\n", path, len(seed.Categories), len(seed.Listings))
		return nil
	}

	_, store, err := loadStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := store.Import(ctx, seed); err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	fmt.Printf("Imported %d categories and %d listings from %s\n", len(seed.Categories), len(seed.Listings), path)
	return nil
}
