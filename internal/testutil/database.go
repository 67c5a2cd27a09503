// Package testutil provides shared test helpers: an in-memory database with
// migrations applied and builders for the fixtures most tests need.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

// DefaultUserID owns every fixture unless a test overrides it.
const DefaultUserID = "user-1"

// TestDB is a migrated in-memory database scoped to one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database seeded with the given categories
// for DefaultUserID. The database is closed when the test ends.
func SetupTestDB(t *testing.T, categories ...string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, name := range categories {
		if err := store.EnsureCategory(ctx, DefaultUserID, name, ""); err != nil {
			t.Fatalf("failed to seed category %q: %v", name, err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustCreateAccount registers a mail account for DefaultUserID or fails the test.
func (db *TestDB) MustCreateAccount(id string, provider model.ProviderKind) *model.MailAccount {
	db.t.Helper()
	account := &model.MailAccount{
		ID:       id,
		UserID:   DefaultUserID,
		Provider: provider,
		Address:  id + "@example.com",
		Timezone: model.DefaultTimezone,
	}
	if err := db.Storage.CreateAccount(context.Background(), account); err != nil {
		db.t.Fatalf("failed to create account %s: %v", id, err)
	}
	return account
}

// MustCreateRule stores rule for DefaultUserID or fails the test.
func (db *TestDB) MustCreateRule(rule model.CategoryRule) model.CategoryRule {
	db.t.Helper()
	if rule.UserID == "" {
		rule.UserID = DefaultUserID
	}
	if rule.Confidence == 0 {
		rule.Confidence = model.DefaultRuleConfidence
	}
	rule.Enabled = true
	if err := db.Storage.CreateRule(context.Background(), &rule); err != nil {
		db.t.Fatalf("failed to create rule %q: %v", rule.Name, err)
	}
	return rule
}

// MustSaveMessages stores events for the account and returns the pending messages.
func (db *TestDB) MustSaveMessages(accountID string, events ...model.MailEvent) []model.RawMessage {
	db.t.Helper()
	ctx := context.Background()
	if _, err := db.Storage.SaveRawMessages(ctx, accountID, events); err != nil {
		db.t.Fatalf("failed to save messages: %v", err)
	}
	pending, err := db.Storage.ListPendingMessages(ctx, accountID, 1<<30)
	if err != nil {
		db.t.Fatalf("failed to list messages: %v", err)
	}
	return pending
}

// MustCreateTransaction stores an uncategorized transaction backed by a new message on
// the account or fails the test.
func (db *TestDB) MustCreateTransaction(account *model.MailAccount, providerID, merchant, card, amount string) model.Transaction {
	db.t.Helper()
	received := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)
	pending := db.MustSaveMessages(account.ID, AlertEvent(providerID, BankSender, "Compra", merchant+" "+amount, received))

	var msg model.RawMessage
	for _, m := range pending {
		if m.ProviderMessageID == providerID {
			msg = m
		}
	}
	if msg.ID == 0 {
		db.t.Fatalf("message %s was not stored", providerID)
	}

	candidate := model.TransactionCandidate{
		Amount:     decimal.RequireFromString(amount),
		Currency:   "CRC",
		Date:       received,
		CardLast4:  card,
		Merchant:   merchant,
		Method:     model.ExtractionRule,
		Confidence: 0.9,
	}
	txn := model.NewTransaction(*account, msg, candidate, model.Uncategorized())
	if _, err := db.Storage.UpsertTransaction(context.Background(), &txn); err != nil {
		db.t.Fatalf("failed to create transaction: %v", err)
	}
	return txn
}
