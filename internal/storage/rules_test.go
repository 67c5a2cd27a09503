package storage

import (
	"context"
	"testing"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_CreateAndList(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	minAmount := decimal.RequireFromString("1000")
	maxAmount := decimal.RequireFromString("50000.50")

	rules := []*model.CategoryRule{
		{UserID: "user-1", Name: "fuel", MerchantPattern: "SERVICENTRO", Category: "Transport", Priority: 120, Confidence: 0.8, Enabled: true, Origin: model.OriginSeeded},
		{UserID: "user-1", Name: "card", CardLast4: "1234", Category: "Groceries", Priority: 2, Confidence: 0.9, Enabled: true},
		{UserID: "user-1", Name: "range", MerchantPattern: "UBER", AmountMin: &minAmount, AmountMax: &maxAmount, Category: "Transport", Priority: 1, Confidence: 0.95, Enabled: true},
		{UserID: "user-2", Name: "other user", MerchantPattern: "UBER", Category: "Travel", Priority: 1, Confidence: 0.9, Enabled: true},
	}
	for _, r := range rules {
		require.NoError(t, store.CreateRule(ctx, r))
		assert.NotZero(t, r.ID)
	}
	assert.Equal(t, model.OriginUser, rules[1].Origin, "origin defaults to user")

	listed, err := store.ListRules(ctx, "user-1", true)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, []string{"range", "card", "fuel"}, []string{listed[0].Name, listed[1].Name, listed[2].Name})

	require.NotNil(t, listed[0].AmountMin)
	require.NotNil(t, listed[0].AmountMax)
	assert.True(t, listed[0].AmountMin.Equal(minAmount))
	assert.True(t, listed[0].AmountMax.Equal(maxAmount))
	assert.Nil(t, listed[1].AmountMin)

	require.NoError(t, store.DisableRule(ctx, rules[1].ID))
	listed, err = store.ListRules(ctx, "user-1", true)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	listed, err = store.ListRules(ctx, "user-1", false)
	require.NoError(t, err)
	assert.Len(t, listed, 3, "disabled rules are kept")

	assert.ErrorIs(t, store.DisableRule(ctx, 999), common.ErrNotFound)
}

func TestRules_UseCount(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	rule := &model.CategoryRule{UserID: "user-1", MerchantPattern: "CLARO", Category: "Utilities", Priority: 120, Confidence: 0.8, Enabled: true}
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.IncrementRuleUse(ctx, rule.ID))
	require.NoError(t, store.IncrementRuleUse(ctx, rule.ID))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestRules_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	low := decimal.NewFromInt(10)
	high := decimal.NewFromInt(100)

	tests := []struct {
		rule *model.CategoryRule
		name string
	}{
		{name: "nil", rule: nil},
		{name: "no predicate", rule: &model.CategoryRule{UserID: "u", Category: "X", Confidence: 0.5}},
		{name: "no category", rule: &model.CategoryRule{UserID: "u", MerchantPattern: "A", Confidence: 0.5}},
		{name: "inverted range", rule: &model.CategoryRule{UserID: "u", Category: "X", AmountMin: &high, AmountMax: &low}},
		{name: "confidence out of range", rule: &model.CategoryRule{UserID: "u", Category: "X", MerchantPattern: "A", Confidence: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.CreateRule(ctx, tt.rule))
		})
	}
}

func TestCategories(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCategory(ctx, "user-1", "Groceries", "Supermarkets"))
	require.NoError(t, store.EnsureCategory(ctx, "user-1", "Groceries", "ignored"))
	require.NoError(t, store.EnsureCategory(ctx, "user-1", "Dining", ""))
	require.NoError(t, store.EnsureCategory(ctx, "user-2", "Travel", ""))

	cats, err := store.ListCategories(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Dining", cats[0].Name)
	assert.Equal(t, "Supermarkets", cats[1].Description)
}

func TestRules_MatchTypeAndField(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	regex := &model.CategoryRule{
		UserID: "user-1", Name: "rides", MerchantPattern: `^(uber|didi)`, Category: "Transport",
		Confidence: 0.9, Enabled: true, MatchType: model.MatchRegex, MatchField: model.FieldAny,
	}
	plain := &model.CategoryRule{UserID: "user-1", Name: "plain", MerchantPattern: "SERVICENTRO", Category: "Transport", Confidence: 0.8, Enabled: true}
	require.NoError(t, store.CreateRule(ctx, regex))
	require.NoError(t, store.CreateRule(ctx, plain))

	got, err := store.GetRule(ctx, regex.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchRegex, got.MatchType)
	assert.Equal(t, model.FieldAny, got.MatchField)

	got, err = store.GetRule(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchContains, got.MatchType)
	assert.Equal(t, model.FieldMerchant, got.MatchField)

	tests := []struct {
		name string
		rule model.CategoryRule
	}{
		{name: "unknown match type", rule: model.CategoryRule{UserID: "user-1", MerchantPattern: "x", Category: "T", MatchType: "fuzzy"}},
		{name: "unknown match field", rule: model.CategoryRule{UserID: "user-1", MerchantPattern: "x", Category: "T", MatchField: "memo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rule
			assert.ErrorIs(t, store.CreateRule(ctx, &r), ErrInvalidRule)
		})
	}

	always := &model.CategoryRule{UserID: "user-1", Name: "catch-all", Category: "Other", Confidence: 0.5, Enabled: true, MatchType: model.MatchAlways}
	require.NoError(t, store.CreateRule(ctx, always))
}
