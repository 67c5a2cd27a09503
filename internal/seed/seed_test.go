package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
	"github.com/lrocampoa/ExpenseTracker/internal/testutil"
)

func TestLoad_BundledDefaults(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, d.Categories)
	assert.NotEmpty(t, d.Rules)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid",
			data: "categories:\n  - name: Fuel\nrules:\n  - merchant: servicentro\n    category: fuel\n",
		},
		{
			name:    "unknown category",
			data:    "categories:\n  - name: Fuel\nrules:\n  - merchant: uber\n    category: Transport\n",
			wantErr: true,
		},
		{
			name:    "empty merchant",
			data:    "categories:\n  - name: Fuel\nrules:\n  - merchant: \"**\"\n    category: Fuel\n",
			wantErr: true,
		},
		{
			name:    "malformed",
			data:    "categories: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse_UnknownCategoryIsInvalidConfig(t *testing.T) {
	_, err := Parse([]byte("categories: []\nrules:\n  - merchant: uber\n    category: Transport\n"))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestSeed_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	d, err := Load()
	require.NoError(t, err)

	first, err := Seed(ctx, db.Storage, testutil.DefaultUserID, d, nil)
	require.NoError(t, err)
	assert.Equal(t, len(d.Rules), first.RulesCreated)
	assert.Zero(t, first.RulesSkipped)

	second, err := Seed(ctx, db.Storage, testutil.DefaultUserID, d, nil)
	require.NoError(t, err)
	assert.Zero(t, second.RulesCreated)
	assert.Equal(t, len(d.Rules), second.RulesSkipped)

	rules, err := db.Storage.ListRules(ctx, testutil.DefaultUserID, false)
	require.NoError(t, err)
	assert.Len(t, rules, len(d.Rules))
	for _, r := range rules {
		assert.Equal(t, model.OriginSeeded, r.Origin)
		assert.True(t, r.Enabled)
	}

	categories, err := db.Storage.ListCategories(ctx, testutil.DefaultUserID)
	require.NoError(t, err)
	assert.Len(t, categories, len(d.Categories))
}

func TestSeed_RulesCategorize(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	d, err := Load()
	require.NoError(t, err)
	_, err = Seed(ctx, db.Storage, testutil.DefaultUserID, d, nil)
	require.NoError(t, err)

	rules, err := pattern.LoadRuleSet(ctx, db.Storage, testutil.DefaultUserID)
	require.NoError(t, err)

	tests := []struct {
		merchant string
		want     string
	}{
		{merchant: "UBER TRIP HELP.UBER.COM", want: "Transport"},
		{merchant: "UBER EATS SAN JOSE", want: "Dining"},
		{merchant: "AUTO MERCADO ESCAZU", want: "Groceries"},
		{merchant: "SERVICENTRO LA GALERA", want: "Fuel"},
	}

	for _, tt := range tests {
		t.Run(tt.merchant, func(t *testing.T) {
			rule, ok := rules.Match(model.TransactionCandidate{Merchant: tt.merchant})
			require.True(t, ok)
			assert.Equal(t, tt.want, rule.Category)
		})
	}
}

func TestSeed_SkipsUserAuthoredDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t, "Transport")
	ctx := context.Background()

	require.NoError(t, db.Storage.CreateRule(ctx, &model.CategoryRule{
		UserID:          testutil.DefaultUserID,
		Name:            "my uber",
		MerchantPattern: "Uber",
		Category:        "Transport",
		Origin:          model.OriginUser,
		Priority:        model.DefaultUserPriority,
		Confidence:      1,
		Enabled:         true,
	}))

	d := &Defaults{
		Categories: []CategorySeed{{Name: "Transport"}},
		Rules:      []RuleSeed{{Merchant: "uber", Category: "Transport"}},
	}
	result, err := Seed(ctx, db.Storage, testutil.DefaultUserID, d, nil)
	require.NoError(t, err)
	assert.Zero(t, result.RulesCreated)
	assert.Equal(t, 1, result.RulesSkipped)
}
