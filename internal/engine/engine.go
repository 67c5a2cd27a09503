// Package engine assigns a category to each parsed transaction, first from the user's
// rules and then from the inference fallback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
)

// Engine categorizes transaction candidates.
type Engine struct {
	usage         UsageRecorder
	fallback      Categorizer
	logger        *slog.Logger
	minConfidence float64
}

// Config holds configuration options for the engine.
type Config struct {
	// MinFallbackConfidence is the lowest fallback confidence that assigns a category.
	MinFallbackConfidence float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MinFallbackConfidence: 0.5,
	}
}

// New creates an engine. A nil fallback leaves unmatched candidates uncategorized.
func New(usage UsageRecorder, fallback Categorizer, logger *slog.Logger) *Engine {
	return NewWithConfig(usage, fallback, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(usage UsageRecorder, fallback Categorizer, logger *slog.Logger, config Config) *Engine {
	return &Engine{
		usage:         usage,
		fallback:      fallback,
		logger:        common.LoggerOrDefault(logger),
		minConfidence: config.MinFallbackConfidence,
	}
}

// Categorize returns the decision for c under rules. It fails only when the fallback
// hit a transient error the caller should retry.
func (e *Engine) Categorize(ctx context.Context, c model.TransactionCandidate, rules *pattern.RuleSet) (model.CategoryDecision, error) {
	if rule, ok := rules.Match(c); ok {
		e.recordUse(ctx, rule)
		ruleID := rule.ID
		return model.CategoryDecision{
			Category:   rule.Category,
			Source:     model.SourceRule,
			Confidence: rule.Confidence,
			RuleID:     &ruleID,
		}, nil
	}

	if e.fallback == nil || len(rules.Categories()) == 0 {
		return model.Uncategorized(), nil
	}

	guess, err := e.fallback.Categorize(ctx, model.CategorizationRequest{
		UserID:      rules.UserID,
		Merchant:    c.Merchant,
		Description: c.Description,
		Amount:      c.Amount.StringFixed(2),
		Currency:    c.Currency,
		Categories:  rules.Categories(),
	})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrBudgetExhausted), errors.Is(err, common.ErrInferenceDisabled):
		return model.Uncategorized(), nil
	case errors.Is(err, context.Canceled), common.IsTransient(err):
		return model.CategoryDecision{}, fmt.Errorf("failed to categorize with fallback: %w", err)
	default:
		e.logger.Warn("Fallback categorization failed", "merchant", c.Merchant, "error", err)
		return model.Uncategorized(), nil
	}

	category, ok := rules.Category(guess.Category)
	if !ok || guess.Confidence < e.minConfidence {
		e.logger.Debug("Fallback guess discarded",
			"merchant", c.Merchant,
			"category", guess.Category,
			"confidence", guess.Confidence)
		return model.Uncategorized(), nil
	}

	return model.CategoryDecision{
		Category:   category,
		Source:     model.SourceInference,
		Confidence: guess.Confidence,
	}, nil
}

func (e *Engine) recordUse(ctx context.Context, rule model.CategoryRule) {
	if e.usage == nil {
		return
	}
	if err := e.usage.IncrementRuleUse(ctx, rule.ID); err != nil {
		e.logger.Warn("Failed to record rule use", "rule", rule.ID, "error", err)
	}
}
