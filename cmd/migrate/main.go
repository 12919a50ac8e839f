package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/impostorgame/internal/config"
	pgstorage "github.com/mcoot/impostorgame/internal/storage/postgres"
)

func main() {
	var databaseURL string

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the Postgres schema",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				databaseURL = config.Load().DatabaseURL
			}
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL (env: DATABASE_URL)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pgstorage.Migrate(databaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pgstorage.MigrateDown(databaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := pgstorage.MigrationVersion(databaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %d (dirty: %t)\n", version, dirty)
			return nil
		},
	})

	_ = config.LoadDotEnv(".env")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
