package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

func reprocessCmd() *cobra.Command {
	var (
		all        bool
		accountID  string
		reviewOnly bool
	)

	cmd := &cobra.Command{
		Use:   "reprocess [transaction-id]",
		Short: "Parse and categorize stored transactions again",
		Long: `Re-run parsing and categorization on the raw message behind a transaction.
The transaction keeps its identity and manual categories are preserved.

Use --all to reprocess every transaction of the user, for example after adding rules.`,
		Example: `  tracker reprocess 6f1c2a9e-...
  tracker reprocess --all --review`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give either a transaction ID or --all")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !all {
				txn, err := a.service.Reprocess(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s %s %s → %s\n", //nolint:forbidigo // User-facing output
					cli.SuccessStyle.Render(cli.SuccessIcon),
					txn.Merchant,
					cli.FormatAmount(*txn),
					cli.FormatCategory(*txn))
				return nil
			}

			filter := service.TransactionFilter{UserID: a.cfg.UserID, AccountID: accountID}
			if reviewOnly {
				filter.NeedsReview = &reviewOnly
			}
			txns, err := a.store.ListTransactions(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			if len(txns) == 0 {
				fmt.Println(cli.SubtitleStyle.Render("No transactions to reprocess.")) //nolint:forbidigo // User-facing output
				return nil
			}

			handler := cli.NewInterruptHandler(os.Stdout)
			ctx := handler.HandleInterrupts(cmd.Context(), "Reprocess", "tracker reprocess --all")
			bar := cli.NewProgressBar(os.Stdout, len(txns), "Reprocessing transactions...")

			var changed, failed int
			for _, txn := range txns {
				if ctx.Err() != nil {
					break
				}
				updated, err := a.service.Reprocess(ctx, txn.ID)
				cli.Advance(bar)
				if err != nil {
					if ctx.Err() == nil {
						failed++
						a.logger.Warn("Reprocess failed", "transaction", txn.ID, "error", err)
					}
					continue
				}
				if updated.Category != txn.Category {
					changed++
				}
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Reprocessed %d transactions: %d recategorized, %d failed", len(txns), changed, failed))) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reprocess every transaction of the user")
	cmd.Flags().StringVar(&accountID, "account", "", "with --all, only this account")
	cmd.Flags().BoolVar(&reviewOnly, "review", false, "with --all, only transactions flagged for review")

	return cmd
}
