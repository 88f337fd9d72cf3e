package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/roost/pkg/db"
	"github.com/rubiojr/roost/pkg/version"
	"github.com/urfave/cli/v3"
)

// VersionCommand prints the release and the schema version it expects.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Println(version.BuildVersion())

			migrations, err := db.GetEmbeddedMigrations()
			if err != nil {
				return err
			}
			if n := len(migrations); n > 0 {
				fmt.Printf("schema version %03d (%s)\n", migrations[n-1].Version, migrations[n-1].Name)
			}
			return nil
		},
	}
}
