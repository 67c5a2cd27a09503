package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and reset per-account sync checkpoints",
		Long: `Each account keeps a sync checkpoint: the provider cursor, the last successful
sync and the consecutive failure count. Resetting a checkpoint clears the cursor so
the next sync reseeds from a baseline listing. Stored messages are never fetched
twice, so a reset is safe.`,
	}

	cmd.AddCommand(showCheckpointCmd())
	cmd.AddCommand(resetCheckpointCmd())

	return cmd
}

func showCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show an account's sync checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(_ *config.Config, store *storage.SQLiteStorage) error {
				ctx := cmd.Context()
				if _, err := store.GetAccount(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to get account: %w", err)
				}

				cp, err := store.LoadCheckpoint(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load checkpoint: %w", err)
				}
				if cp == nil {
					fmt.Println(cli.SubtitleStyle.Render("Account has never synced.")) //nolint:forbidigo // User-facing output
					return nil
				}

				now := time.Now()
				cursor := cp.Cursor
				if cp.IsBaseline() {
					cursor = cli.WarningStyle.Render("none (next sync is a baseline)")
				}
				lastSync := "never"
				if cp.LastSyncedAt != nil {
					lastSync = fmt.Sprintf("%s (%s)", cp.LastSyncedAt.Local().Format(time.RFC3339), cli.FormatRelativeTime(*cp.LastSyncedAt, now))
				}
				lease := "free"
				if cp.LeaseOwner != "" && cp.LeaseExpiresAt != nil && cp.LeaseExpiresAt.After(now) {
					lease = fmt.Sprintf("held by %s until %s", cp.LeaseOwner, cp.LeaseExpiresAt.Local().Format(time.Kitchen))
				}

				fmt.Println(cli.FormatTitle("Checkpoint " + cp.AccountID)) //nolint:forbidigo // User-facing output
				fmt.Printf("Cursor:    %s\n", cursor)                      //nolint:forbidigo // User-facing output
				fmt.Printf("Last sync: %s\n", lastSync)                    //nolint:forbidigo // User-facing output
				fmt.Printf("Failures:  %d\n", cp.FailureCount)             //nolint:forbidigo // User-facing output
				fmt.Printf("Fetched:   %d\n", cp.FetchedMessages)          //nolint:forbidigo // User-facing output
				fmt.Printf("Lease:     %s\n", lease)                       //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}

func resetCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <account-id>",
		Short: "Clear an account's cursor so the next sync starts from a baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(_ *config.Config, store *storage.SQLiteStorage) error {
				ctx := cmd.Context()
				if _, err := store.GetAccount(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to get account: %w", err)
				}
				if err := store.ResetCheckpoint(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess("Checkpoint reset. The next sync reseeds from a baseline listing.")) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}
