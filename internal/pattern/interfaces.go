// Package pattern holds the rule-matching side of categorization: normalized merchant
// predicates, the per-run RuleSet, and the correction loop that learns rule suggestions.
package pattern

import (
	"context"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// RuleSource loads what a RuleSet needs.
type RuleSource interface {
	ListRules(ctx context.Context, userID string, enabledOnly bool) ([]model.CategoryRule, error)
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
}

// Store is the persistence the correction loop needs.
type Store interface {
	service.TransactionStore
	service.RuleStore
	service.CategoryStore
	service.CorrectionStore
	service.SuggestionStore
}

// CorrectionResult describes what a manual correction produced.
type CorrectionResult struct {
	Correction *model.Correction
	// Suggestion is the created or reinforced pending suggestion, if any.
	Suggestion *model.RuleSuggestion
	// Conflict is the enabled rule that already covers the corrected predicate.
	Conflict *model.CategoryRule
	// Suppressed is set when the user previously rejected the same suggestion.
	Suppressed bool
}
