package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Suggester turns manual corrections into rule suggestions and promotes accepted ones.
type Suggester struct {
	store     Store
	validator *Validator
	logger    *slog.Logger
}

// NewSuggester creates a new correction loop over store.
func NewSuggester(store Store, logger *slog.Logger) *Suggester {
	return &Suggester{
		store:     store,
		validator: NewValidator(store),
		logger:    common.LoggerOrDefault(logger),
	}
}

// ApplyCorrection records a manual category change on a transaction and derives a
// pending rule suggestion from it.
func (s *Suggester) ApplyCorrection(ctx context.Context, txID, newCategory string) (*CorrectionResult, error) {
	txn, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	category := strings.TrimSpace(newCategory)
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}
	category, err = s.ensureCategory(ctx, txn.UserID, category)
	if err != nil {
		return nil, err
	}

	correction := &model.Correction{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		OldCategory:   txn.Category,
		NewCategory:   category,
		Merchant:      txn.Merchant,
		CardLast4:     txn.CardLast4,
	}
	decision := model.CategoryDecision{Category: category, Source: model.SourceManual, Confidence: 1.0}
	if err := s.store.CorrectTransaction(ctx, correction, decision); err != nil {
		return nil, fmt.Errorf("failed to apply correction: %w", err)
	}

	result := &CorrectionResult{Correction: correction}

	merchant := NormalizeMerchant(txn.Merchant)
	if merchant == "" {
		return result, nil
	}
	card := NormalizeCard(txn.CardLast4)

	rules, err := LoadRuleSet(ctx, s.store, txn.UserID)
	if err != nil {
		return nil, err
	}
	if rule, ok := rules.Covering(merchant, card); ok {
		if !strings.EqualFold(rule.Category, category) {
			result.Conflict = &rule
			s.logger.Warn("Correction conflicts with enabled rule",
				"transaction", txn.ID,
				"rule", rule.ID,
				"rule_category", rule.Category,
				"corrected_to", category)
		}
		return result, nil
	}

	rejected, err := s.store.HasRejectedSuggestion(ctx, txn.UserID, merchant, category)
	if err != nil {
		return nil, err
	}
	if rejected {
		result.Suppressed = true
		s.logger.Debug("Suggestion previously rejected", "merchant", merchant, "category", category)
		return result, nil
	}

	suggestion := &model.RuleSuggestion{
		UserID:    txn.UserID,
		Merchant:  merchant,
		CardLast4: card,
		Category:  category,
	}
	created, err := s.store.UpsertPendingSuggestion(ctx, suggestion)
	if err != nil {
		return nil, fmt.Errorf("failed to save suggestion: %w", err)
	}
	result.Suggestion = suggestion

	s.logger.Info("Rule suggestion updated",
		"suggestion", suggestion.ID,
		"merchant", merchant,
		"category", category,
		"evidence", suggestion.Evidence,
		"created", created)

	return result, nil
}

// Accept promotes a pending suggestion to a rule ranked below every user-authored rule.
func (s *Suggester) Accept(ctx context.Context, id int64) (*model.CategoryRule, error) {
	suggestion, err := s.store.GetSuggestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	if suggestion.Status != model.SuggestionPending {
		return nil, fmt.Errorf("%w: suggestion %d is %s", model.ErrInvalidTransition, id, suggestion.Status)
	}

	existing, err := s.store.ListRules(ctx, suggestion.UserID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	rule := suggestion.Rule(model.SuggestedPriority(existing))
	if err := s.validator.ValidateRule(ctx, &rule); err != nil {
		return nil, err
	}
	if err := s.store.AcceptSuggestion(ctx, suggestion, &rule); err != nil {
		return nil, fmt.Errorf("failed to accept suggestion: %w", err)
	}

	s.logger.Info("Suggestion accepted", "suggestion", id, "rule", rule.ID, "priority", rule.Priority)
	return &rule, nil
}

// Reject marks a pending suggestion rejected. Future corrections for the same merchant
// and category no longer produce suggestions.
func (s *Suggester) Reject(ctx context.Context, id int64, reason string) error {
	suggestion, err := s.store.GetSuggestion(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get suggestion: %w", err)
	}
	if err := suggestion.Reject(reason); err != nil {
		return err
	}
	if err := s.store.UpdateSuggestionStatus(ctx, suggestion); err != nil {
		return fmt.Errorf("failed to reject suggestion: %w", err)
	}

	s.logger.Info("Suggestion rejected", "suggestion", id, "reason", reason)
	return nil
}

func (s *Suggester) ensureCategory(ctx context.Context, userID, name string) (string, error) {
	canonical, ok, err := s.validator.ResolveCategory(ctx, userID, name)
	if err != nil {
		return "", err
	}
	if ok {
		return canonical, nil
	}
	if err := s.store.EnsureCategory(ctx, userID, name, ""); err != nil {
		return "", fmt.Errorf("failed to create category: %w", err)
	}
	return name, nil
}
