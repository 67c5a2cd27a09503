package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// LoadCheckpoint returns the account's checkpoint, or nil if the account has never synced.
func (s *SQLiteStorage) LoadCheckpoint(ctx context.Context, accountID string) (*model.SyncCheckpoint, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	var cp model.SyncCheckpoint
	var lastSynced sql.NullTime
	var leaseOwner sql.NullString
	var leaseExpires sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, cursor, last_synced_at, failure_count, fetched_messages,
			lease_owner, lease_expires_at
		FROM sync_checkpoints
		WHERE account_id = ?
	`, accountID).Scan(
		&cp.AccountID, &cp.Cursor, &lastSynced, &cp.FailureCount, &cp.FetchedMessages,
		&leaseOwner, &leaseExpires,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if cp.Cursor == "" && !lastSynced.Valid {
		return nil, nil
	}

	cp.LastSyncedAt = timePtr(lastSynced)
	cp.LeaseOwner = leaseOwner.String
	if leaseExpires.Valid {
		t := time.UnixMilli(leaseExpires.Int64).UTC()
		cp.LeaseExpiresAt = &t
	}
	return &cp, nil
}

// CommitCheckpoint advances the cursor and clears the failure counter in one statement.
// The commit only applies while owner holds the account's lease.
func (s *SQLiteStorage) CommitCheckpoint(ctx context.Context, accountID, owner, cursor string, fetched int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}
	if err := validateString(owner, "owner"); err != nil {
		return err
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_checkpoints
		SET cursor = ?, last_synced_at = ?, failure_count = 0,
			fetched_messages = fetched_messages + ?, updated_at = ?
		WHERE account_id = ? AND lease_owner = ? AND lease_expires_at >= ?
	`, cursor, now, fetched, now, accountID, owner, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s owner %s: %w", accountID, owner, common.ErrLeaseLost)
	}
	return nil
}

// ResetCheckpoint clears the cursor so the next sync reseeds from a baseline listing.
func (s *SQLiteStorage) ResetCheckpoint(ctx context.Context, accountID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE sync_checkpoints SET cursor = '', updated_at = ? WHERE account_id = ?
	`, s.now(), accountID); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}

// AcquireLease grants owner exclusive sync rights on the account until ttl elapses.
// Re-acquiring an owned lease extends it.
func (s *SQLiteStorage) AcquireLease(ctx context.Context, accountID, owner string, ttl time.Duration) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}
	if err := validateString(owner, "owner"); err != nil {
		return err
	}

	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_checkpoints (account_id) VALUES (?)
			ON CONFLICT(account_id) DO NOTHING
		`, accountID); err != nil {
			return fmt.Errorf("failed to ensure checkpoint: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE sync_checkpoints
			SET lease_owner = ?, lease_expires_at = ?
			WHERE account_id = ?
				AND (lease_owner IS NULL OR lease_owner = ? OR lease_expires_at < ?)
		`, owner, now.Add(ttl).UnixMilli(), accountID, owner, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to acquire lease: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to acquire lease: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("account %s: %w", accountID, common.ErrLeaseHeld)
		}
		return nil
	})
}

// ReleaseLease drops owner's lease. Releasing a lease held by someone else is a no-op.
func (s *SQLiteStorage) ReleaseLease(ctx context.Context, accountID, owner string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE sync_checkpoints
		SET lease_owner = NULL, lease_expires_at = NULL
		WHERE account_id = ? AND lease_owner = ?
	`, accountID, owner); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// RecordSyncFailure increments the consecutive-failure counter and returns its new value.
func (s *SQLiteStorage) RecordSyncFailure(ctx context.Context, accountID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sync_checkpoints
			SET failure_count = failure_count + 1, updated_at = ?
			WHERE account_id = ?
		`, s.now(), accountID); err != nil {
			return fmt.Errorf("failed to record sync failure: %w", err)
		}
		return tx.QueryRowContext(ctx,
			`SELECT failure_count FROM sync_checkpoints WHERE account_id = ?`, accountID,
		).Scan(&count)
	})
	if err != nil {
		return 0, notFound(err, "checkpoint "+accountID)
	}
	return count, nil
}
