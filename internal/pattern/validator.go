package pattern

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// ErrUnknownCategory is returned when a rule names a category the user does not have.
var ErrUnknownCategory = errors.New("unknown category")

// Validator checks rules against the user's categories before they are stored.
type Validator struct {
	categories service.CategoryStore
}

// NewValidator creates a new rule validator.
func NewValidator(categories service.CategoryStore) *Validator {
	return &Validator{categories: categories}
}

// ResolveCategory returns the stored spelling of name, matched case-insensitively.
func (v *Validator) ResolveCategory(ctx context.Context, userID, name string) (string, bool, error) {
	categories, err := v.categories.ListCategories(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load categories: %w", err)
	}

	want := strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(c.Name, want) {
			return c.Name, true, nil
		}
	}
	return "", false, nil
}

// ValidateRule ensures the rule is well formed and targets an existing category.
// The category is rewritten to its stored spelling.
func (v *Validator) ValidateRule(ctx context.Context, rule *model.CategoryRule) error {
	if !rule.MatchType.Valid() {
		return fmt.Errorf("rule %q: unknown match type %q", rule.Name, rule.MatchType)
	}
	if !rule.MatchField.Valid() {
		return fmt.Errorf("rule %q: unknown match field %q", rule.Name, rule.MatchField)
	}
	if rule.MatchType == model.MatchRegex {
		if rule.MerchantPattern == "" {
			return fmt.Errorf("rule %q: regex rules need a pattern", rule.Name)
		}
		if _, err := CompilePattern(rule.MerchantPattern); err != nil {
			return fmt.Errorf("rule %q: %w", rule.Name, err)
		}
	}
	if rule.Specificity() == 0 && rule.MatchType != model.MatchAlways {
		return fmt.Errorf("rule %q must constrain merchant, card or amount", rule.Name)
	}
	if rule.CardLast4 != "" && len(NormalizeCard(rule.CardLast4)) != 4 {
		return fmt.Errorf("rule %q: card filter must be the last four digits, got %q", rule.Name, rule.CardLast4)
	}
	if rule.AmountMin != nil && rule.AmountMax != nil && rule.AmountMin.GreaterThan(*rule.AmountMax) {
		return fmt.Errorf("rule %q: amount_min %s exceeds amount_max %s", rule.Name, rule.AmountMin, rule.AmountMax)
	}
	if rule.Priority < 0 {
		return fmt.Errorf("rule %q: priority must not be negative", rule.Name)
	}

	canonical, ok, err := v.ResolveCategory(ctx, rule.UserID, rule.Category)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownCategory, rule.Category)
	}
	rule.Category = canonical
	return nil
}
