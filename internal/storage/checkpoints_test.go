package storage

import (
	"context"
	"testing"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_NeverSynced(t *testing.T) {
	store := createTestStorage(t)
	createTestAccount(t, store, "acc-1")

	cp, err := store.LoadCheckpoint(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.True(t, cp.IsBaseline())
}

func TestCheckpoint_CommitRequiresLease(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createTestAccount(t, store, "acc-1")

	err := store.CommitCheckpoint(ctx, "acc-1", "worker-a", "100", 3)
	assert.ErrorIs(t, err, common.ErrLeaseLost)

	require.NoError(t, store.AcquireLease(ctx, "acc-1", "worker-a", time.Minute))
	_, err = store.RecordSyncFailure(ctx, "acc-1")
	require.NoError(t, err)

	require.NoError(t, store.CommitCheckpoint(ctx, "acc-1", "worker-a", "100", 3))
	require.NoError(t, store.CommitCheckpoint(ctx, "acc-1", "worker-a", "105", 2))

	cp, err := store.LoadCheckpoint(ctx, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "105", cp.Cursor)
	assert.Equal(t, 5, cp.FetchedMessages)
	assert.Equal(t, 0, cp.FailureCount)
	assert.NotNil(t, cp.LastSyncedAt)
	assert.Equal(t, "worker-a", cp.LeaseOwner)
}

func TestCheckpoint_Lease(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createTestAccount(t, store, "acc-1")

	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	require.NoError(t, store.AcquireLease(ctx, "acc-1", "worker-a", time.Minute))

	t.Run("held by another owner", func(t *testing.T) {
		err := store.AcquireLease(ctx, "acc-1", "worker-b", time.Minute)
		assert.ErrorIs(t, err, common.ErrLeaseHeld)
	})

	t.Run("same owner extends", func(t *testing.T) {
		assert.NoError(t, store.AcquireLease(ctx, "acc-1", "worker-a", time.Minute))
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		require.NoError(t, store.AcquireLease(ctx, "acc-1", "worker-b", time.Minute))

		err := store.CommitCheckpoint(ctx, "acc-1", "worker-a", "999", 1)
		assert.ErrorIs(t, err, common.ErrLeaseLost)
	})

	t.Run("release by non-owner is a no-op", func(t *testing.T) {
		require.NoError(t, store.ReleaseLease(ctx, "acc-1", "worker-a"))
		assert.ErrorIs(t, store.AcquireLease(ctx, "acc-1", "worker-a", time.Minute), common.ErrLeaseHeld)
	})

	t.Run("release frees the lease", func(t *testing.T) {
		require.NoError(t, store.ReleaseLease(ctx, "acc-1", "worker-b"))
		assert.NoError(t, store.AcquireLease(ctx, "acc-1", "worker-a", time.Minute))
	})
}

func TestCheckpoint_ResetAndFailures(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createTestAccount(t, store, "acc-1")

	require.NoError(t, store.AcquireLease(ctx, "acc-1", "w", time.Minute))
	require.NoError(t, store.CommitCheckpoint(ctx, "acc-1", "w", "42", 1))
	require.NoError(t, store.ResetCheckpoint(ctx, "acc-1"))

	cp, err := store.LoadCheckpoint(ctx, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.IsBaseline())

	for want := 1; want <= 3; want++ {
		got, err := store.RecordSyncFailure(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = store.RecordSyncFailure(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
