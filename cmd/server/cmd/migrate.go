package cmd

import (
	"fmt"

	"github.com/puddingmeetup/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

var (
	migrateSteps int
	migratePath  string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Run database migrations",
	Long: `Apply or roll back database schema migrations.

Examples:
  # Apply all pending migrations
  server migrate up

  # Roll back the last migration
  server migrate down --steps 1`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}

		switch args[0] {
		case "up":
			return postgres.MigrateUp(cfg.Database.URL, migratePath)
		case "down":
			return postgres.MigrateDown(cfg.Database.URL, migratePath, migrateSteps)
		default:
			return fmt.Errorf("unknown direction %q", args[0])
		}
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back (down only)")
	migrateCmd.Flags().StringVar(&migratePath, "path", "", "migrations directory (default: "+postgres.DefaultMigrationsPath+")")
}
