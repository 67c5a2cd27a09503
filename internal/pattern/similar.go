package pattern

import (
	"context"
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// SimilarPair is two pending suggestions whose merchants differ only slightly,
// such as "uber trip" and "uber trips".
type SimilarPair struct {
	A        model.RuleSuggestion
	B        model.RuleSuggestion
	Distance int
}

// SimilarPending finds pending suggestions for the same category whose merchants are
// within maxDistance edits of each other.
func (s *Suggester) SimilarPending(ctx context.Context, userID string, maxDistance int) ([]SimilarPair, error) {
	pending, err := s.store.ListSuggestions(ctx, userID, model.SuggestionPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return similarPairs(pending, maxDistance), nil
}

func similarPairs(suggestions []model.RuleSuggestion, maxDistance int) []SimilarPair {
	var pairs []SimilarPair
	for i := 0; i < len(suggestions); i++ {
		for j := i + 1; j < len(suggestions); j++ {
			a, b := suggestions[i], suggestions[j]
			if a.Category != b.Category || a.Merchant == b.Merchant {
				continue
			}
			if d := levenshtein.ComputeDistance(a.Merchant, b.Merchant); d <= maxDistance {
				pairs = append(pairs, SimilarPair{A: a, B: b, Distance: d})
			}
		}
	}
	return pairs
}
