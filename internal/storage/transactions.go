package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

const transactionColumns = `
	id, natural_key, account_id, user_id, message_id, amount, currency, date,
	card_last4, merchant, description, reference, parse_confidence, extraction_method,
	category, category_source, category_confidence, rule_id, needs_review, created_at, updated_at`

// UpsertTransaction inserts txn or updates the row sharing its natural key.
// A manually assigned category survives the update. On return txn carries the
// persisted ID and category; created reports whether a new row was inserted.
func (s *SQLiteStorage) UpsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateTransaction(txn); err != nil {
		return false, err
	}
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CategorySource == "" {
		txn.CategorySource = model.SourceNone
	}

	var created bool
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE natural_key = ?`, txn.NaturalKey).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check natural key: %w", err)
		}
		created = existing == 0

		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(natural_key) DO UPDATE SET
				message_id = excluded.message_id,
				amount = excluded.amount,
				currency = excluded.currency,
				date = excluded.date,
				card_last4 = excluded.card_last4,
				merchant = excluded.merchant,
				description = excluded.description,
				reference = excluded.reference,
				parse_confidence = excluded.parse_confidence,
				extraction_method = excluded.extraction_method,
				category = CASE WHEN transactions.category_source = 'manual'
					THEN transactions.category ELSE excluded.category END,
				category_confidence = CASE WHEN transactions.category_source = 'manual'
					THEN transactions.category_confidence ELSE excluded.category_confidence END,
				rule_id = CASE WHEN transactions.category_source = 'manual'
					THEN transactions.rule_id ELSE excluded.rule_id END,
				needs_review = CASE WHEN transactions.category_source = 'manual'
					THEN transactions.needs_review ELSE excluded.needs_review END,
				category_source = CASE WHEN transactions.category_source = 'manual'
					THEN transactions.category_source ELSE excluded.category_source END,
				updated_at = excluded.updated_at
		`,
			txn.ID, txn.NaturalKey, txn.AccountID, txn.UserID, txn.MessageID, txn.Amount.String(),
			txn.Currency, txn.Date, txn.CardLast4, txn.Merchant, txn.Description, txn.Reference,
			txn.ParseConfidence, txn.ExtractionMethod, txn.Category, txn.CategorySource,
			txn.CategoryConfidence, nullInt64(txn.RuleID), txn.NeedsReview, now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("transaction %s: %w", txn.NaturalKey, common.ErrPersistenceConflict)
			}
			return fmt.Errorf("failed to upsert transaction: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE natural_key = ?`, txn.NaturalKey)
		stored, err := scanTransaction(row)
		if err != nil {
			return fmt.Errorf("failed to read back transaction: %w", err)
		}
		*txn = *stored
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "transaction "+id)
	}
	return txn, nil
}

// GetTransactionByNaturalKey retrieves the transaction derived from a given message identity.
func (s *SQLiteStorage) GetTransactionByNaturalKey(ctx context.Context, naturalKey string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(naturalKey, "naturalKey"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE natural_key = ?`, naturalKey)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "transaction with natural key "+naturalKey)
	}
	return txn, nil
}

// ListTransactions returns transactions matching filter, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any

	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.NeedsReview != nil {
		conditions = append(conditions, "needs_review = ?")
		args = append(args, *filter.NeedsReview)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, id"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// UpdateTransactionCategory overwrites the category fields of a transaction.
// A manual decision also clears the review flag.
func (s *SQLiteStorage) UpdateTransactionCategory(ctx context.Context, id string, decision model.CategoryDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateTransactionCategory(ctx, s.db, id, decision)
}

func (s *SQLiteStorage) updateTransactionCategory(ctx context.Context, q queryable, id string, decision model.CategoryDecision) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?, category_source = ?, category_confidence = ?, rule_id = ?,
			needs_review = CASE WHEN ? = 'manual' THEN 0 ELSE needs_review END,
			updated_at = ?
		WHERE id = ?
	`, decision.Category, decision.Source, decision.Confidence, nullInt64(decision.RuleID),
		decision.Source, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var ruleID sql.NullInt64
	if err := row.Scan(
		&txn.ID, &txn.NaturalKey, &txn.AccountID, &txn.UserID, &txn.MessageID, &txn.Amount,
		&txn.Currency, &txn.Date, &txn.CardLast4, &txn.Merchant, &txn.Description, &txn.Reference,
		&txn.ParseConfidence, &txn.ExtractionMethod, &txn.Category, &txn.CategorySource,
		&txn.CategoryConfidence, &ruleID, &txn.NeedsReview, &txn.CreatedAt, &txn.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if ruleID.Valid {
		id := ruleID.Int64
		txn.RuleID = &id
	}
	return &txn, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
