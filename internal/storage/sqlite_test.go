package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated database in a temporary directory.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createTestAccount(t *testing.T, store *SQLiteStorage, id string) *model.MailAccount {
	t.Helper()
	account := &model.MailAccount{
		ID:           id,
		UserID:       "user-1",
		Provider:     model.ProviderGmail,
		Address:      id + "@example.com",
		SenderFilter: []string{"notificaciones@baccredomatic.com"},
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func makeEvents(n int, base time.Time) []model.MailEvent {
	events := make([]model.MailEvent, n)
	for i := range events {
		events[i] = model.MailEvent{
			ProviderMessageID: fmt.Sprintf("msg-%d", i+1),
			ThreadID:          fmt.Sprintf("thread-%d", i+1),
			Sender:            "notificaciones@baccredomatic.com",
			Subject:           "Notificación de transacción",
			ReceivedAt:        base.Add(time.Duration(i) * time.Minute),
			Body:              fmt.Sprintf("Compra por CRC %d,000.00 en COMERCIO %d", i+1, i+1),
		}
	}
	return events
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store1, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Migrate(ctx))
	_ = store1.Close()

	// Running migrations again must be a no-op.
	store2, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store2.Close() }()
	require.NoError(t, store2.Migrate(ctx))

	version, err := store2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	account := &model.MailAccount{ID: "acc", UserID: "u", Provider: model.ProviderIMAP, Address: "a@b.c"}
	assert.NoError(t, store2.CreateAccount(ctx, account), "database not functional after migration")
}

func TestSQLiteStorage_Accounts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	account := createTestAccount(t, store, "acc-1")
	assert.Equal(t, model.AccountActive, account.Status)

	got, err := store.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, account.Address, got.Address)
	assert.Equal(t, []string{"notificaciones@baccredomatic.com"}, got.SenderFilter)

	t.Run("duplicate address is rejected", func(t *testing.T) {
		dup := &model.MailAccount{ID: "acc-2", UserID: "user-1", Provider: model.ProviderGmail, Address: account.Address}
		assert.ErrorIs(t, store.CreateAccount(ctx, dup), common.ErrDuplicateEntry)
	})

	t.Run("status update", func(t *testing.T) {
		require.NoError(t, store.UpdateAccountStatus(ctx, "acc-1", model.AccountDegraded))
		got, err := store.GetAccount(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, model.AccountDegraded, got.Status)

		assert.ErrorIs(t, store.UpdateAccountStatus(ctx, "missing", model.AccountDisabled), common.ErrNotFound)
		assert.ErrorIs(t, store.UpdateAccountStatus(ctx, "acc-1", "bogus"), ErrInvalidStatus)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := store.GetAccount(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestSQLiteStorage_Validation(t *testing.T) {
	store := createTestStorage(t)

	//nolint:staticcheck // nil context is the case under test
	_, err := store.GetAccount(nil, "acc")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = store.GetAccount(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyString)

	err = store.CreateAccount(context.Background(), &model.MailAccount{ID: "x", UserID: "u", Provider: "pop3", Address: "a"})
	assert.ErrorIs(t, err, ErrInvalidAccount)
}
