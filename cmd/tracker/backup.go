package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func backupCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a verified snapshot of the database",
		Long: `Write a consistent copy of the database, check its integrity and report where it
went. Snapshots are named after the schema version and the time they were taken.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				if dir == "" {
					dir = cfg.BackupDir()
				}
				info, err := store.Backup(cmd.Context(), dir)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess("Backup written"))                  //nolint:forbidigo // User-facing output
				fmt.Printf("Path:           %s\n", info.Path)                     //nolint:forbidigo // User-facing output
				fmt.Printf("Size:           %s\n", cli.FormatFileSize(info.Size)) //nolint:forbidigo // User-facing output
				fmt.Printf("Schema version: %d\n", info.SchemaVersion)            //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "backup directory (default: database.backup_dir)")

	return cmd
}
