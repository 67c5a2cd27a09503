package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

func suggestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Review rules learned from corrections",
		Long: `Corrections for the same merchant accumulate into rule suggestions. Accepting
one creates a rule that ranks below every rule you wrote yourself; rejecting one stops
it from being suggested again.`,
	}

	cmd.AddCommand(listSuggestionsCmd())
	cmd.AddCommand(acceptSuggestionCmd())
	cmd.AddCommand(rejectSuggestionCmd())
	cmd.AddCommand(similarSuggestionsCmd())

	return cmd
}

func listSuggestionsCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rule suggestions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := model.SuggestionStatus(status)
			switch st {
			case "", model.SuggestionPending, model.SuggestionAccepted, model.SuggestionRejected:
			default:
				return fmt.Errorf("unknown status %q (use pending, accepted or rejected)", status)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			suggestions, err := a.service.ListSuggestions(cmd.Context(), a.cfg.UserID, st)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Println(cli.SubtitleStyle.Render("No suggestions.")) //nolint:forbidigo // User-facing output
				return nil
			}

			table := cli.NewTable(os.Stdout, "id", "merchant", "card", "category", "evidence", "status", "note")
			for _, s := range suggestions {
				note := s.Reason
				if s.RuleID != nil {
					note = fmt.Sprintf("rule %d", *s.RuleID)
				}
				table.Row(
					cli.InfoStyle.Render(strconv.FormatInt(s.ID, 10)),
					s.Merchant,
					orDash(s.CardLast4),
					s.Category,
					strconv.Itoa(s.Evidence),
					cli.FormatStatus(string(s.Status)),
					note,
				)
			}
			return table.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", string(model.SuggestionPending), "filter by status (pending, accepted, rejected; empty for all)")

	return cmd
}

func acceptSuggestionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <suggestion-id>",
		Short: "Turn a suggestion into a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rule, err := a.service.AcceptSuggestion(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Printf("%s Created rule %s: %s → %s (priority %d)\n", //nolint:forbidigo // User-facing output
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(strconv.FormatInt(rule.ID, 10)),
				rule.MerchantPattern,
				rule.Category,
				rule.Priority)
			return nil
		},
	}
}

func rejectSuggestionCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <suggestion-id>",
		Short: "Dismiss a suggestion for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.RejectSuggestion(cmd.Context(), id, reason); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rejected suggestion %d", id))) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the suggestion is wrong")

	return cmd
}

func similarSuggestionsCmd() *cobra.Command {
	var maxDistance int

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Find pending suggestions that look like duplicates",
		Long: `List pairs of pending suggestions for the same category whose merchants differ
by only a few characters, such as "UBER TRIP" and "UBER TRIPS". Accept one and reject
the other to keep the rule set small.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			pairs, err := a.suggester.SimilarPending(cmd.Context(), a.cfg.UserID, maxDistance)
			if err != nil {
				return err
			}
			if len(pairs) == 0 {
				fmt.Println(cli.SubtitleStyle.Render("No similar pending suggestions.")) //nolint:forbidigo // User-facing output
				return nil
			}

			table := cli.NewTable(os.Stdout, "first", "second", "category", "distance")
			for _, p := range pairs {
				table.Row(
					fmt.Sprintf("%d %s", p.A.ID, p.A.Merchant),
					fmt.Sprintf("%d %s", p.B.ID, p.B.Merchant),
					p.A.Category,
					strconv.Itoa(p.Distance),
				)
			}
			return table.Flush()
		},
	}

	cmd.Flags().IntVar(&maxDistance, "distance", 2, "maximum edit distance between merchants")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}
