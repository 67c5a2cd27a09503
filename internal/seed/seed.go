// Package seed installs the default categories and merchant rules for a user.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// CategorySeed is one default category.
type CategorySeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// RuleSeed is one default merchant rule. A zero priority takes model.DefaultSeedPriority.
type RuleSeed struct {
	Merchant string `yaml:"merchant"`
	Category string `yaml:"category"`
	Priority int    `yaml:"priority"`
}

// Defaults is a parsed seed file.
type Defaults struct {
	Categories []CategorySeed `yaml:"categories"`
	Rules      []RuleSeed     `yaml:"rules"`
}

// Store is the persistence seeding writes to.
type Store interface {
	service.CategoryStore
	service.RuleStore
}

// Result counts what a Seed call changed.
type Result struct {
	Categories   int
	RulesCreated int
	RulesSkipped int
}

// Load returns the bundled defaults.
func Load() (*Defaults, error) {
	return Parse(defaultsYAML)
}

// Parse decodes a seed file and checks every rule names one of its categories.
func Parse(data []byte) (*Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	known := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("%w: seed category without a name", common.ErrInvalidConfig)
		}
		known[strings.ToLower(c.Name)] = true
	}
	for _, r := range d.Rules {
		if pattern.NormalizeMerchant(r.Merchant) == "" {
			return nil, fmt.Errorf("%w: seed rule for %q has no merchant", common.ErrInvalidConfig, r.Category)
		}
		if !known[strings.ToLower(r.Category)] {
			return nil, fmt.Errorf("%w: seed rule %q targets unknown category %q", common.ErrInvalidConfig, r.Merchant, r.Category)
		}
	}
	return &d, nil
}

// Seed installs d for userID. It is idempotent: categories are ensured and a rule is
// skipped when the user already has a merchant-only rule with the same pattern and
// category, whatever its origin or state.
func Seed(ctx context.Context, store Store, userID string, d *Defaults, logger *slog.Logger) (Result, error) {
	logger = common.LoggerOrDefault(logger)
	var result Result

	for _, c := range d.Categories {
		if err := store.EnsureCategory(ctx, userID, c.Name, c.Description); err != nil {
			return result, fmt.Errorf("failed to seed category %q: %w", c.Name, err)
		}
		result.Categories++
	}

	existing, err := store.ListRules(ctx, userID, false)
	if err != nil {
		return result, fmt.Errorf("failed to list rules: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, r := range existing {
		if r.CardLast4 == "" && r.AmountMin == nil && r.AmountMax == nil {
			have[seedKey(r.MerchantPattern, r.Category)] = true
		}
	}

	validator := pattern.NewValidator(store)
	for _, s := range d.Rules {
		if have[seedKey(s.Merchant, s.Category)] {
			result.RulesSkipped++
			continue
		}

		priority := s.Priority
		if priority == 0 {
			priority = model.DefaultSeedPriority
		}
		rule := &model.CategoryRule{
			UserID:          userID,
			Name:            "seed: " + s.Merchant,
			MerchantPattern: strings.ToUpper(pattern.NormalizeMerchant(s.Merchant)),
			Category:        s.Category,
			Origin:          model.OriginSeeded,
			Priority:        priority,
			Confidence:      model.DefaultRuleConfidence,
			Enabled:         true,
		}
		if err := validator.ValidateRule(ctx, rule); err != nil {
			return result, err
		}
		if err := store.CreateRule(ctx, rule); err != nil {
			return result, fmt.Errorf("failed to seed rule %q: %w", s.Merchant, err)
		}
		have[seedKey(s.Merchant, s.Category)] = true
		result.RulesCreated++
	}

	logger.Info("Seeded defaults",
		"user_id", userID,
		"categories", result.Categories,
		"rules_created", result.RulesCreated,
		"rules_skipped", result.RulesSkipped)
	return result, nil
}

func seedKey(merchant, category string) string {
	return pattern.NormalizeMerchant(merchant) + "|" + strings.ToLower(category)
}
