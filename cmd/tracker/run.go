package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <account-id>",
		Short: "Fetch new mail without processing it",
		Long: `Pull new messages for one account into the local store and advance its
checkpoint. Messages are parsed later by "tracker run".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			account, err := a.store.GetAccount(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load account: %w", err)
			}

			result, err := a.orchestrator.Sync(ctx, *account)
			if err != nil {
				return describeRunError(err)
			}

			fmt.Printf("%s Synced %s: %d fetched, %d new, %d already stored\n", //nolint:forbidigo // User-facing output
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(account.ID),
				result.Fetched, result.Stored, result.Skipped)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [account-id]",
		Short: "Sync and process mail",
		Long: `Sync every enabled account (or just the one given), then parse, categorize and
store the transactions in all pending messages.

Interrupting a run is safe: committed checkpoints and transactions are kept and the
next run picks up the remaining messages.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := cli.NewInterruptHandler(os.Stdout)
			ctx := handler.HandleInterrupts(cmd.Context(), "Run", "tracker run")

			if len(args) == 1 {
				result, err := a.service.TriggerImport(ctx, args[0])
				printRunResults([]model.RunResult{result})
				return describeRunError(err)
			}

			accounts, err := a.store.ListAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			enabled := lo.CountBy(accounts, func(acc model.MailAccount) bool {
				return acc.Status != model.AccountDisabled
			})
			if enabled == 0 {
				fmt.Println(cli.SubtitleStyle.Render("No enabled accounts. Add one with: tracker accounts add")) //nolint:forbidigo // User-facing output
				return nil
			}

			bar := cli.NewProgressBar(os.Stdout, enabled, "Processing mailboxes...")
			scheduler := a.scheduler()
			scheduler.OnResult = func(model.RunResult, error) { cli.Advance(bar) }

			results, err := scheduler.RunAll(ctx)
			printRunResults(results)
			if handler.WasInterrupted() {
				return nil
			}
			return err
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run every account on an interval",
		Long:  `Run all enabled accounts now and again every scheduler.interval until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Println(cli.FormatInfo(fmt.Sprintf("Watching mailboxes every %s (Ctrl+C to stop)", a.cfg.Scheduler.Interval))) //nolint:forbidigo // User-facing output

			err = a.scheduler().Every(cmd.Context(), a.cfg.Scheduler.Interval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func printRunResults(results []model.RunResult) {
	if len(results) == 0 {
		return
	}

	table := cli.NewTable(os.Stdout, "account", "fetched", "new", "parsed", "no match", "categorized", "failed", "review")
	for _, r := range results {
		if r.AccountID == "" {
			continue
		}
		review := fmt.Sprintf("%d", r.Review)
		if r.Review > 0 {
			review = cli.WarningStyle.Render(review)
		}
		failed := fmt.Sprintf("%d", r.Failed)
		if r.Failed > 0 {
			failed = cli.ErrorStyle.Render(failed)
		}
		table.Row(
			cli.InfoStyle.Render(r.AccountID),
			fmt.Sprintf("%d", r.Sync.Fetched),
			fmt.Sprintf("%d", r.Sync.Stored),
			fmt.Sprintf("%d", r.Parsed),
			fmt.Sprintf("%d", r.NoMatch),
			fmt.Sprintf("%d", r.Categorized),
			failed,
			review,
		)
	}
	if err := table.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
	}
}

// describeRunError explains the expected ways a run is refused.
func describeRunError(err error) error {
	switch {
	case errors.Is(err, common.ErrLeaseHeld):
		return common.NewUserError("another worker is syncing this account; try again shortly", err)
	case errors.Is(err, common.ErrAccountDisabled):
		return common.NewUserError("the account is disabled", err)
	default:
		return err
	}
}
