package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/cli"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
	"github.com/lrocampoa/ExpenseTracker/internal/seed"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long: `Rules map merchant, card and amount predicates to categories. The rule with the
lowest priority wins; ties go to the more specific rule, then the older one.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(disableRuleCmd())
	cmd.AddCommand(seedRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				rules, err := store.ListRules(cmd.Context(), cfg.UserID, !all)
				if err != nil {
					return fmt.Errorf("failed to list rules: %w", err)
				}
				if len(rules) == 0 {
					fmt.Println(cli.SubtitleStyle.Render("No rules. Install the defaults with: tracker rules seed")) //nolint:forbidigo // User-facing output
					return nil
				}

				table := cli.NewTable(os.Stdout, "id", "priority", "match", "merchant", "card", "amount", "category", "origin", "uses", "state")
				for _, r := range rules {
					state := "enabled"
					if !r.Enabled {
						state = "disabled"
					}
					table.Row(
						cli.InfoStyle.Render(strconv.FormatInt(r.ID, 10)),
						strconv.Itoa(r.Priority),
						string(r.MatchField)+" "+string(r.MatchType),
						orDash(r.MerchantPattern),
						orDash(r.CardLast4),
						formatRange(r.AmountMin, r.AmountMax),
						r.Category,
						string(r.Origin),
						strconv.Itoa(r.UseCount),
						cli.FormatStatus(state),
					)
				}
				return table.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include disabled rules")

	return cmd
}

func addRuleCmd() *cobra.Command {
	var (
		name           string
		merchant       string
		card           string
		minAmount      string
		maxAmount      string
		matchType      string
		matchField     string
		priority       int
		confidence     float64
		createCategory bool
	)

	cmd := &cobra.Command{
		Use:   "add <category>",
		Short: "Add a rule",
		Example: `  tracker rules add Transport --merchant uber --card 1234
  tracker rules add Groceries --merchant "auto mercado" --priority 50
  tracker rules add Rent --min 450000 --max 450000 --create-category
  tracker rules add Transport --merchant '^(uber|didi)\b' --match-type regex
  tracker rules add Transfers --merchant sinpe --match-field description`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				ctx := cmd.Context()

				rule := &model.CategoryRule{
					UserID:          cfg.UserID,
					Name:            name,
					MerchantPattern: merchant,
					CardLast4:       pattern.NormalizeCard(card),
					Category:        args[0],
					Origin:          model.OriginUser,
					MatchType:       model.MatchType(matchType),
					MatchField:      model.MatchField(matchField),
					Priority:        priority,
					Confidence:      confidence,
					Enabled:         true,
				}
				var err error
				if rule.AmountMin, err = parseAmountFlag(minAmount); err != nil {
					return err
				}
				if rule.AmountMax, err = parseAmountFlag(maxAmount); err != nil {
					return err
				}
				if rule.Name == "" {
					rule.Name = fmt.Sprintf("%s %s", args[0], merchant)
				}
				if card != "" && rule.CardLast4 == "" {
					return fmt.Errorf("card %q has no digits", card)
				}

				if createCategory {
					if err := store.EnsureCategory(ctx, cfg.UserID, args[0], ""); err != nil {
						return fmt.Errorf("failed to create category: %w", err)
					}
				}
				if err := pattern.NewValidator(store).ValidateRule(ctx, rule); err != nil {
					return err
				}
				if err := store.CreateRule(ctx, rule); err != nil {
					return fmt.Errorf("failed to create rule: %w", err)
				}

				fmt.Printf("%s Created rule %s → %s (priority %d)\n", //nolint:forbidigo // User-facing output
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(strconv.FormatInt(rule.ID, 10)),
					rule.Category,
					rule.Priority)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "rule name (default: category and merchant)")
	cmd.Flags().StringVarP(&merchant, "merchant", "m", "", "pattern compared with the match field, ignoring case and accents")
	cmd.Flags().StringVar(&matchType, "match-type", string(model.MatchContains), "contains, starts_with, ends_with, exact, regex or always")
	cmd.Flags().StringVar(&matchField, "match-field", string(model.FieldMerchant), "merchant, description, card_last4 or any")
	cmd.Flags().StringVar(&card, "card", "", "last four digits of the card")
	cmd.Flags().StringVar(&minAmount, "min", "", "minimum amount, inclusive")
	cmd.Flags().StringVar(&maxAmount, "max", "", "maximum amount, inclusive")
	cmd.Flags().IntVarP(&priority, "priority", "p", model.DefaultUserPriority, "priority; lower wins")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "confidence recorded on matches")
	cmd.Flags().BoolVar(&createCategory, "create-category", false, "create the category if it does not exist")

	return cmd
}

func disableRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule",
		Long:  `Disable a rule. Rules are never deleted, so transactions keep pointing at them.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStorage(cmd, func(_ *config.Config, store *storage.SQLiteStorage) error {
				if err := store.DisableRule(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to disable rule: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Disabled rule %d", id))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}

func seedRulesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the default categories and merchant rules",
		Long: `Install the bundled default categories and merchant rules, or those of a YAML
file with the same layout. Rules the user already has are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults, err := loadSeed(file)
			if err != nil {
				return err
			}
			return withStorage(cmd, func(cfg *config.Config, store *storage.SQLiteStorage) error {
				result, err := seed.Seed(cmd.Context(), store, cfg.UserID, defaults, nil)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf( //nolint:forbidigo // User-facing output
					"%d categories ensured, %d rules created, %d already present",
					result.Categories, result.RulesCreated, result.RulesSkipped)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with categories and rules (default: bundled)")

	return cmd
}

func loadSeed(file string) (*seed.Defaults, error) {
	if file == "" {
		return seed.Load()
	}
	data, err := os.ReadFile(config.ExpandPath(file)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return seed.Parse(data)
}

func parseAmountFlag(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return &d, nil
}

func formatRange(low, high *decimal.Decimal) string {
	switch {
	case low == nil && high == nil:
		return "-"
	case low == nil:
		return "≤ " + high.String()
	case high == nil:
		return "≥ " + low.String()
	default:
		return low.String() + "–" + high.String()
	}
}
