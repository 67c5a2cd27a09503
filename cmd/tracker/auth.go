package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/mailbox"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailbox access",
		Long:  `Run the OAuth flow that lets tracker read a Gmail or Outlook mailbox.`,
	}

	cmd.AddCommand(authProviderCmd(model.ProviderGmail, "Gmail", "gmail.client_id and gmail.client_secret"))
	cmd.AddCommand(authProviderCmd(model.ProviderOutlook, "Outlook", "outlook.client_id, outlook.client_secret and outlook.tenant"))

	return cmd
}

func authProviderCmd(provider model.ProviderKind, name, settings string) *cobra.Command {
	var callback string

	cmd := &cobra.Command{
		Use:   string(provider) + " <account-id>",
		Short: "Authorize read access to a " + name + " account",
		Long: fmt.Sprintf(`Authorize read-only access to a %s mailbox.

This command will:
1. Start a local callback server
2. Print the consent URL to open in your browser
3. Save the refresh token under token_dir

Requires %s in the config file.`, name, settings),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				ctx := cmd.Context()

				account, err := store.GetAccount(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load account: %w", err)
				}
				if account.Provider != provider {
					return fmt.Errorf("account %s is a %s account, not %s", account.ID, account.Provider, provider)
				}

				oauthCfg, err := cfg.MailboxConfig(nil).OAuthFor(*account)
				if err != nil {
					return err
				}
				oauthCfg.CallbackAddr = callback

				if _, err := mailbox.AuthenticateInteractive(ctx, oauthCfg); err != nil {
					return fmt.Errorf("failed to authorize %s: %w", name, err)
				}

				fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s account %s authorized", name, account.Address))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&callback, "callback", "localhost:8080", "address of the local OAuth callback server")

	return cmd
}
