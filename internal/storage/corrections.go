package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// RecordCorrection appends a manual correction. Corrections cannot be edited or removed.
func (s *SQLiteStorage) RecordCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.recordCorrection(ctx, s.db, correction)
}

// CorrectTransaction records correction and applies decision to its transaction in
// one database transaction. Neither write persists if the other fails.
func (s *SQLiteStorage) CorrectTransaction(ctx context.Context, correction *model.Correction, decision model.CategoryDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if correction == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.recordCorrection(ctx, tx, correction); err != nil {
			return err
		}
		return s.updateTransactionCategory(ctx, tx, correction.TransactionID, decision)
	})
	if err != nil {
		correction.ID = 0
		return err
	}
	return nil
}

func (s *SQLiteStorage) recordCorrection(ctx context.Context, q queryable, correction *model.Correction) error {
	if correction == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}
	if err := validateString(correction.TransactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateString(correction.NewCategory, "newCategory"); err != nil {
		return err
	}

	now := s.now()
	result, err := q.ExecContext(ctx, `
		INSERT INTO corrections (
			transaction_id, user_id, old_category, new_category, merchant, card_last4, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, correction.TransactionID, correction.UserID, correction.OldCategory, correction.NewCategory,
		correction.Merchant, correction.CardLast4, now)
	if err != nil {
		return fmt.Errorf("failed to record correction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get correction ID: %w", err)
	}
	correction.ID = id
	correction.CreatedAt = now
	return nil
}

// ListCorrections returns the correction history of a transaction, oldest first.
func (s *SQLiteStorage) ListCorrections(ctx context.Context, transactionID string) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, user_id, old_category, new_category, merchant, card_last4, created_at
		FROM corrections
		WHERE transaction_id = ?
		ORDER BY created_at, id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var corrections []model.Correction
	for rows.Next() {
		var c model.Correction
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.UserID, &c.OldCategory, &c.NewCategory,
			&c.Merchant, &c.CardLast4, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		corrections = append(corrections, c)
	}
	return corrections, rows.Err()
}
