package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
)

func correctCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <transaction-id> <category>",
		Short: "Set a transaction's category by hand",
		Long: `Record a manual category for a transaction. Manual categories survive
reprocessing. Repeated corrections for the same merchant build up a rule suggestion;
review them with "tracker suggestions list".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.service.ApplyCorrection(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			c := result.Correction
			fmt.Printf("%s %s: %s → %s\n", //nolint:forbidigo // User-facing output
				cli.SuccessStyle.Render(cli.SuccessIcon),
				c.Merchant,
				cli.SubtleStyle.Render(orDash(c.OldCategory)),
				cli.InfoStyle.Render(c.NewCategory))

			switch {
			case result.Conflict != nil:
				fmt.Println(cli.FormatWarning(fmt.Sprintf( //nolint:forbidigo // User-facing output
					"Rule %d (%s) files this merchant under %s; review or disable it with: tracker rules disable %d",
					result.Conflict.ID, result.Conflict.Name, result.Conflict.Category, result.Conflict.ID)))
			case result.Suppressed:
				fmt.Println(cli.SubtleStyle.Render("A suggestion for this merchant was rejected before; no new suggestion made.")) //nolint:forbidigo // User-facing output
			case result.Suggestion != nil:
				s := result.Suggestion
				fmt.Println(cli.FormatInfo(fmt.Sprintf( //nolint:forbidigo // User-facing output
					"Suggestion %d: %s → %s (evidence %d). Accept with: tracker suggestions accept %d",
					s.ID, s.Merchant, s.Category, s.Evidence, s.ID)))
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
