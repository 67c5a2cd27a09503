package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func decisionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Manage cached inference decisions",
		Long: `Fallback inference results are cached by input fingerprint and reused forever.
Invalidate them after changing the model or the category list.`,
	}

	cmd.AddCommand(invalidateDecisionsCmd())

	return cmd
}

func invalidateDecisionsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached inference decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var k model.DecisionKind
			switch kind {
			case "all":
			case string(model.DecisionExtraction), string(model.DecisionCategorization):
				k = model.DecisionKind(kind)
			default:
				return fmt.Errorf("unknown kind %q (use extraction, categorization or all)", kind)
			}

			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				n, err := store.InvalidateDecisions(cmd.Context(), cfg.UserID, k)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Dropped %d cached decisions", n))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "all", "decision kind (extraction, categorization or all)")

	return cmd
}
