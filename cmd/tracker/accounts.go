package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/seed"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage connected mailboxes",
		Long:  `Add, list and disable the mailboxes tracker reads bank alerts from.`,
	}

	cmd.AddCommand(addAccountCmd())
	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(disableAccountCmd())

	return cmd
}

func addAccountCmd() *cobra.Command {
	var (
		id       string
		provider string
		label    string
		timezone string
		senders  []string
		noSeed   bool
	)

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Connect a mailbox",
		Long: `Register a mailbox. Gmail and Outlook accounts must then be authorized with
"tracker auth gmail|outlook <account-id>". IMAP accounts use the imap.* settings.

Adding an account also installs any missing default categories and rules.`,
		Example: `  tracker accounts add me@gmail.com --provider gmail --sender notificacionesbac.com
  tracker accounts add me@outlook.com --provider outlook --label personal`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				ctx := cmd.Context()

				kind := model.ProviderKind(strings.ToLower(provider))
				if !kind.Valid() {
					return fmt.Errorf("unknown provider %q (use gmail, outlook or imap)", provider)
				}
				if timezone != "" {
					if _, err := time.LoadLocation(timezone); err != nil {
						return fmt.Errorf("invalid timezone %q: %w", timezone, err)
					}
				}
				if id == "" {
					id = uuid.NewString()
				}

				account := &model.MailAccount{
					ID:           id,
					UserID:       cfg.UserID,
					Provider:     kind,
					Address:      args[0],
					Label:        label,
					Timezone:     timezone,
					SenderFilter: senders,
				}
				if err := store.CreateAccount(ctx, account); err != nil {
					return fmt.Errorf("failed to add account: %w", err)
				}

				fmt.Printf("%s Added %s account %s (%s)\n", //nolint:forbidigo // User-facing output
					cli.SuccessStyle.Render(cli.SuccessIcon),
					account.Provider,
					cli.InfoStyle.Render(account.ID),
					account.Address)

				if !noSeed {
					defaults, err := seed.Load()
					if err != nil {
						return err
					}
					result, err := seed.Seed(ctx, store, cfg.UserID, defaults, nil)
					if err != nil {
						return fmt.Errorf("failed to install default rules: %w", err)
					}
					if result.RulesCreated > 0 {
						fmt.Println(cli.FormatInfo(fmt.Sprintf("Installed %d default rules", result.RulesCreated))) //nolint:forbidigo // User-facing output
					}
				}

				if kind != model.ProviderIMAP {
					fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Next: tracker auth %s %s", kind, account.ID))) //nolint:forbidigo // User-facing output
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "account ID (default: generated)")
	cmd.Flags().StringVarP(&provider, "provider", "p", "gmail", "mailbox provider (gmail, outlook, imap)")
	cmd.Flags().StringVarP(&label, "label", "l", "", "display label")
	cmd.Flags().StringVar(&timezone, "timezone", model.DefaultTimezone, "timezone of dates in alert emails")
	cmd.Flags().StringSliceVar(&senders, "sender", nil, "only ingest mail whose sender contains this (repeatable)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "skip installing default categories and rules")

	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected mailboxes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd, func(_ *config.Config, store *storage.SQLiteStorage) error {
				ctx := cmd.Context()

				accounts, err := store.ListAccounts(ctx)
				if err != nil {
					return fmt.Errorf("failed to list accounts: %w", err)
				}
				if len(accounts) == 0 {
					fmt.Println(cli.SubtitleStyle.Render("No accounts configured. Add one with: tracker accounts add")) //nolint:forbidigo // User-facing output
					return nil
				}

				now := time.Now()
				table := cli.NewTable(os.Stdout, "id", "provider", "address", "user", "status", "last sync", "fetched")
				for _, a := range accounts {
					lastSync, fetched := "never", 0
					if cp, err := store.LoadCheckpoint(ctx, a.ID); err == nil && cp != nil {
						if cp.LastSyncedAt != nil {
							lastSync = cli.FormatRelativeTime(*cp.LastSyncedAt, now)
						}
						fetched = cp.FetchedMessages
					}
					table.Row(
						cli.InfoStyle.Render(a.ID),
						string(a.Provider),
						a.Address,
						a.UserID,
						cli.FormatStatus(string(a.Status)),
						lastSync,
						fmt.Sprintf("%d", fetched),
					)
				}
				return table.Flush()
			})
		},
	}
}

func disableAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <account-id>",
		Short: "Stop syncing a mailbox",
		Long:  `Disable an account. Its messages and transactions are kept; accounts are never deleted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(_ *config.Config, store *storage.SQLiteStorage) error {
				if err := store.UpdateAccountStatus(cmd.Context(), args[0], model.AccountDisabled); err != nil {
					return fmt.Errorf("failed to disable account: %w", err)
				}
				fmt.Println(cli.FormatSuccess("Disabled account " + args[0])) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}
