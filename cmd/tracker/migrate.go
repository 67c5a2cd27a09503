package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup; use this to check the schema or to
upgrade it ahead of time.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show the schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		fmt.Println(cli.FormatTitle("Database Migration Status"))          //nolint:forbidigo // User-facing output
		fmt.Printf("Database:        %s\n", cfg.Database.Path)             //nolint:forbidigo // User-facing output
		fmt.Printf("Current version: %d\n", current)                       //nolint:forbidigo // User-facing output
		fmt.Printf("Latest version:  %d\n", storage.ExpectedSchemaVersion) //nolint:forbidigo // User-facing output
		if current < storage.ExpectedSchemaVersion {
			fmt.Println(cli.FormatWarning("Pending migrations. Apply them with: tracker migrate")) //nolint:forbidigo // User-facing output
		}
		return nil
	}

	slog.Info("Running database migrations", "database", cfg.Database.Path, "from", current)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Database at schema version %d", storage.ExpectedSchemaVersion))) //nolint:forbidigo // User-facing output
	return nil
}
