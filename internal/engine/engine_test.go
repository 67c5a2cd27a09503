package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
)

type stubCategorizer struct {
	err   error
	guess model.CategoryGuess
	reqs  []model.CategorizationRequest
}

func (s *stubCategorizer) Categorize(_ context.Context, req model.CategorizationRequest) (*model.CategoryGuess, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	guess := s.guess
	return &guess, nil
}

type usageCounter struct {
	counts map[int64]int
	mu     sync.Mutex
}

func (u *usageCounter) IncrementRuleUse(_ context.Context, id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts == nil {
		u.counts = make(map[int64]int)
	}
	u.counts[id]++
	return nil
}

func testRuleSet() *pattern.RuleSet {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rules := []model.CategoryRule{
		{ID: 1, UserID: "user-1", Name: "Uber", MerchantPattern: "UBER", Category: "Transport", Priority: 1, Confidence: 0.9, Enabled: true, CreatedAt: created},
		{ID: 2, UserID: "user-1", Name: "Work card", CardLast4: "1234", Category: "Work", Priority: 2, Confidence: 0.8, Enabled: true, CreatedAt: created},
	}
	categories := []model.Category{
		{Name: "Transport", IsActive: true},
		{Name: "Work", IsActive: true},
		{Name: "Groceries", IsActive: true},
	}
	return pattern.NewRuleSet("user-1", rules, categories)
}

func uberCandidate() model.TransactionCandidate {
	return model.TransactionCandidate{
		Merchant:  "UBER TRIP",
		CardLast4: "1234",
		Amount:    decimal.RequireFromString("4250.00"),
		Currency:  "CRC",
	}
}

func TestEngine_RuleWins(t *testing.T) {
	usage := &usageCounter{}
	fallback := &stubCategorizer{guess: model.CategoryGuess{Category: "Groceries", Confidence: 0.99}}
	e := New(usage, fallback, nil)

	decision, err := e.Categorize(context.Background(), uberCandidate(), testRuleSet())
	require.NoError(t, err)

	assert.Equal(t, "Transport", decision.Category)
	assert.Equal(t, model.SourceRule, decision.Source)
	assert.InDelta(t, 0.9, decision.Confidence, 0.0001)
	require.NotNil(t, decision.RuleID)
	assert.Equal(t, int64(1), *decision.RuleID)
	assert.Equal(t, 1, usage.counts[1])
	assert.Empty(t, fallback.reqs, "a rule hit never consults the fallback")
}

func TestEngine_Fallback(t *testing.T) {
	errTransient := common.NewTransientProviderError("openai", "complete", errors.New("503"))

	tests := []struct {
		fallbackErr error
		name        string
		wantSource  model.CategorySource
		wantCat     string
		guess       model.CategoryGuess
		wantErr     bool
	}{
		{
			name:       "confident guess is applied",
			guess:      model.CategoryGuess{Category: "groceries", Confidence: 0.8},
			wantSource: model.SourceInference,
			wantCat:    "Groceries",
		},
		{
			name:       "threshold is inclusive",
			guess:      model.CategoryGuess{Category: "Groceries", Confidence: 0.5},
			wantSource: model.SourceInference,
			wantCat:    "Groceries",
		},
		{
			name:       "low confidence is discarded",
			guess:      model.CategoryGuess{Category: "Groceries", Confidence: 0.49},
			wantSource: model.SourceNone,
		},
		{
			name:       "unknown category is discarded",
			guess:      model.CategoryGuess{Category: "Yachts", Confidence: 0.95},
			wantSource: model.SourceNone,
		},
		{
			name:        "exhausted budget leaves it uncategorized",
			fallbackErr: common.ErrBudgetExhausted,
			wantSource:  model.SourceNone,
		},
		{
			name:        "permanent provider error leaves it uncategorized",
			fallbackErr: common.Permanent(errors.New("400")),
			wantSource:  model.SourceNone,
		},
		{
			name:        "transient error is returned",
			fallbackErr: errTransient,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &stubCategorizer{guess: tt.guess, err: tt.fallbackErr}
			e := New(nil, fallback, nil)

			c := uberCandidate()
			c.Merchant = "AUTOMERCADO"
			c.CardLast4 = "4321"

			decision, err := e.Categorize(context.Background(), c, testRuleSet())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, common.IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, decision.Source)
			assert.Equal(t, tt.wantCat, decision.Category)
			assert.Nil(t, decision.RuleID)

			require.Len(t, fallback.reqs, 1)
			assert.Equal(t, "user-1", fallback.reqs[0].UserID)
			assert.Equal(t, "4250.00", fallback.reqs[0].Amount)
			assert.Len(t, fallback.reqs[0].Categories, 3)
		})
	}
}

func TestEngine_NoFallback(t *testing.T) {
	e := New(nil, nil, nil)

	decision, err := e.Categorize(context.Background(), model.TransactionCandidate{Merchant: "AUTOMERCADO"}, testRuleSet())
	require.NoError(t, err)
	assert.Equal(t, model.Uncategorized(), decision)
}
