package engine

import (
	"context"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Categorizer picks a category when no rule matches.
type Categorizer interface {
	Categorize(ctx context.Context, req model.CategorizationRequest) (*model.CategoryGuess, error)
}

// UsageRecorder counts rule hits.
type UsageRecorder interface {
	IncrementRuleUse(ctx context.Context, id int64) error
}
