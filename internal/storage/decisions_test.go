package storage

import (
	"context"
	"testing"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionLog(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetDecision(ctx, "user-1", model.DecisionCategorization, "fp-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	d := &model.InferenceDecision{
		UserID:           "user-1",
		Kind:             model.DecisionCategorization,
		Fingerprint:      "fp-1",
		Model:            "gpt-4o-mini",
		Response:         `{"category":"Groceries","confidence":0.8}`,
		Category:         "Groceries",
		Confidence:       0.8,
		PromptTokens:     120,
		CompletionTokens: 12,
		CostUnits:        1,
	}
	require.NoError(t, store.SaveDecision(ctx, d))

	got, err := store.GetDecision(ctx, "user-1", model.DecisionCategorization, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Category)
	assert.Equal(t, 132, got.PromptTokens+got.CompletionTokens)

	d.Category = "Dining"
	require.NoError(t, store.SaveDecision(ctx, d))
	got, err = store.GetDecision(ctx, "user-1", model.DecisionCategorization, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "Dining", got.Category)

	extraction := &model.InferenceDecision{UserID: "user-1", Kind: model.DecisionExtraction, Fingerprint: "fp-2"}
	require.NoError(t, store.SaveDecision(ctx, extraction))

	n, err := store.InvalidateDecisions(ctx, "user-1", model.DecisionCategorization)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetDecision(ctx, "user-1", model.DecisionExtraction, "fp-2")
	assert.NoError(t, err, "other kinds survive a targeted invalidation")

	n, err = store.InvalidateDecisions(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCorrections_AppendOnly(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	account := createTestAccount(t, store, "acc-1")
	msg := storeTestMessage(t, store, account.ID)
	txn := testTransaction(account, msg, "Groceries")
	_, err := store.UpsertTransaction(ctx, txn)
	require.NoError(t, err)

	c := &model.Correction{
		TransactionID: txn.ID,
		UserID:        account.UserID,
		OldCategory:   "Groceries",
		NewCategory:   "Household",
		Merchant:      txn.Merchant,
	}
	require.NoError(t, store.RecordCorrection(ctx, c))
	assert.NotZero(t, c.ID)

	_, err = store.DB().ExecContext(ctx, `UPDATE corrections SET new_category = 'X' WHERE id = ?`, c.ID)
	assert.Error(t, err)
	_, err = store.DB().ExecContext(ctx, `DELETE FROM corrections WHERE id = ?`, c.ID)
	assert.Error(t, err)

	history, err := store.ListCorrections(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Household", history[0].NewCategory)
}

func TestCorrectTransaction(t *testing.T) {
	manual := model.CategoryDecision{Category: "Household", Source: model.SourceManual, Confidence: 1}

	tests := []struct {
		name         string
		failUpdate   bool
		wantCategory string
		wantHistory  int
	}{
		{name: "both writes persist", wantCategory: "Household", wantHistory: 1},
		{name: "failed category update drops the correction", failUpdate: true, wantCategory: "Groceries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createTestStorage(t)
			ctx := context.Background()
			account := createTestAccount(t, store, "acc-1")
			msg := storeTestMessage(t, store, account.ID)
			txn := testTransaction(account, msg, "Groceries")
			_, err := store.UpsertTransaction(ctx, txn)
			require.NoError(t, err)

			if tt.failUpdate {
				_, err = store.DB().ExecContext(ctx, `CREATE TRIGGER block_category BEFORE UPDATE OF category ON transactions
					BEGIN SELECT RAISE(ABORT, 'category locked'); END`)
				require.NoError(t, err)
			}

			c := &model.Correction{
				TransactionID: txn.ID,
				UserID:        account.UserID,
				OldCategory:   "Groceries",
				NewCategory:   "Household",
				Merchant:      txn.Merchant,
			}
			err = store.CorrectTransaction(ctx, c, manual)
			if tt.failUpdate {
				require.Error(t, err)
				assert.Zero(t, c.ID)
			} else {
				require.NoError(t, err)
				assert.NotZero(t, c.ID)
			}

			got, err := store.GetTransaction(ctx, txn.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, got.Category)

			history, err := store.ListCorrections(ctx, txn.ID)
			require.NoError(t, err)
			assert.Len(t, history, tt.wantHistory)
		})
	}
}

func TestCorrectTransaction_UnknownTransaction(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	c := &model.Correction{TransactionID: "missing", UserID: "user-1", NewCategory: "Household"}
	err := store.CorrectTransaction(ctx, c, model.CategoryDecision{Category: "Household", Source: model.SourceManual})
	require.Error(t, err)

	history, err := store.ListCorrections(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBackup(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createTestAccount(t, store, "acc-1")

	info, err := store.Backup(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.Size)

	restored, err := NewSQLiteStorage(info.Path)
	require.NoError(t, err)
	defer func() { _ = restored.Close() }()

	got, err := restored.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)
}
