package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

const suggestionColumns = `
	id, user_id, merchant, card_last4, category, evidence, status, rule_id, reason, created_at, updated_at`

// UpsertPendingSuggestion inserts a pending suggestion, or adds one piece of evidence to the
// pending suggestion with the same predicate and category. The partial unique index on pending
// rows guarantees there is at most one. On return suggestion holds the stored row.
func (s *SQLiteStorage) UpsertPendingSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateSuggestion(suggestion); err != nil {
		return false, err
	}

	var created bool
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM rule_suggestions
			WHERE user_id = ? AND merchant = ? AND card_last4 = ? AND category = ? AND status = 'pending'
		`, suggestion.UserID, suggestion.Merchant, suggestion.CardLast4, suggestion.Category).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check pending suggestion: %w", err)
		}
		created = existing == 0

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rule_suggestions (
				user_id, merchant, card_last4, category, evidence, status, reason, created_at, updated_at
			) VALUES (?, ?, ?, ?, 1, 'pending', '', ?, ?)
			ON CONFLICT(user_id, merchant, card_last4, category) WHERE status = 'pending'
			DO UPDATE SET evidence = evidence + 1, updated_at = excluded.updated_at
		`, suggestion.UserID, suggestion.Merchant, suggestion.CardLast4, suggestion.Category, now, now); err != nil {
			return fmt.Errorf("failed to upsert suggestion: %w", err)
		}

		row := tx.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM rule_suggestions
			WHERE user_id = ? AND merchant = ? AND card_last4 = ? AND category = ? AND status = 'pending'
		`, suggestion.UserID, suggestion.Merchant, suggestion.CardLast4, suggestion.Category)
		stored, err := scanSuggestion(row)
		if err != nil {
			return fmt.Errorf("failed to read back suggestion: %w", err)
		}
		*suggestion = *stored
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// HasRejectedSuggestion reports whether the user already rejected a suggestion mapping
// merchant to category.
func (s *SQLiteStorage) HasRejectedSuggestion(ctx context.Context, userID, merchant, category string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rule_suggestions
		WHERE user_id = ? AND merchant = ? AND category = ? AND status = 'rejected'
	`, userID, merchant, category).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check rejected suggestions: %w", err)
	}
	return count > 0, nil
}

// GetSuggestion retrieves a suggestion by ID.
func (s *SQLiteStorage) GetSuggestion(ctx context.Context, id int64) (*model.RuleSuggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM rule_suggestions WHERE id = ?`, id)
	suggestion, err := scanSuggestion(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("suggestion %d", id))
	}
	return suggestion, nil
}

// ListSuggestions returns a user's suggestions in the given status, strongest evidence first.
// An empty status lists every suggestion.
func (s *SQLiteStorage) ListSuggestions(ctx context.Context, userID string, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + suggestionColumns + ` FROM rule_suggestions WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY evidence DESC, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []model.RuleSuggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, *suggestion)
	}
	return suggestions, rows.Err()
}

// AcceptSuggestion creates rule and transitions the pending suggestion to accepted
// in one transaction. Neither change is visible if the other fails.
func (s *SQLiteStorage) AcceptSuggestion(ctx context.Context, suggestion *model.RuleSuggestion, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if suggestion == nil {
		return fmt.Errorf("%w: suggestion", ErrNilParameter)
	}

	accepted := *suggestion
	newRule := *rule
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.createRule(ctx, tx, &newRule); err != nil {
			return err
		}
		if err := accepted.Accept(newRule.ID); err != nil {
			return err
		}
		return s.updateSuggestionStatus(ctx, tx, &accepted)
	})
	if err != nil {
		return err
	}

	*suggestion = accepted
	*rule = newRule
	return nil
}

// UpdateSuggestionStatus persists a transition of a pending suggestion.
func (s *SQLiteStorage) UpdateSuggestionStatus(ctx context.Context, suggestion *model.RuleSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if suggestion == nil {
		return fmt.Errorf("%w: suggestion", ErrNilParameter)
	}
	return s.updateSuggestionStatus(ctx, s.db, suggestion)
}

func (s *SQLiteStorage) updateSuggestionStatus(ctx context.Context, q queryable, suggestion *model.RuleSuggestion) error {
	now := s.now()
	result, err := q.ExecContext(ctx, `
		UPDATE rule_suggestions
		SET status = ?, rule_id = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, suggestion.Status, nullInt64(suggestion.RuleID), suggestion.Reason, now, suggestion.ID)
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: suggestion %d is no longer pending", model.ErrInvalidTransition, suggestion.ID)
	}
	suggestion.UpdatedAt = now
	return nil
}

func scanSuggestion(row scanner) (*model.RuleSuggestion, error) {
	var suggestion model.RuleSuggestion
	var ruleID sql.NullInt64
	if err := row.Scan(
		&suggestion.ID, &suggestion.UserID, &suggestion.Merchant, &suggestion.CardLast4,
		&suggestion.Category, &suggestion.Evidence, &suggestion.Status, &ruleID, &suggestion.Reason,
		&suggestion.CreatedAt, &suggestion.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if ruleID.Valid {
		id := ruleID.Int64
		suggestion.RuleID = &id
	}
	return &suggestion, nil
}
