package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Browse stored transactions",
	}

	cmd.AddCommand(listTransactionsCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		filter     service.TransactionFilter
		reviewOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Example: `  tracker transactions list --review
  tracker transactions list --category Dining --limit 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				filter.UserID = cfg.UserID
				if reviewOnly {
					filter.NeedsReview = &reviewOnly
				}

				txns, err := store.ListTransactions(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("failed to list transactions: %w", err)
				}
				if len(txns) == 0 {
					fmt.Println(cli.SubtitleStyle.Render("No transactions.")) //nolint:forbidigo // User-facing output
					return nil
				}

				table := cli.NewTable(os.Stdout, "id", "date", "merchant", "card", "amount", "category", "review")
				for _, t := range txns {
					review := ""
					if t.NeedsReview {
						review = cli.WarningStyle.Render(cli.WarningIcon)
					}
					table.Row(
						cli.SubtleStyle.Render(t.ID),
						t.Date.Format("2006-01-02"),
						t.Merchant,
						orDash(t.CardLast4),
						cli.FormatAmount(t),
						cli.FormatCategory(t),
						review,
					)
				}
				return table.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&filter.AccountID, "account", "", "only this account")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only this category")
	cmd.Flags().BoolVar(&reviewOnly, "review", false, "only transactions flagged for review")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "rows to skip")

	return cmd
}
