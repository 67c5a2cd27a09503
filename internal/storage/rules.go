package storage

import (
	"context"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/shopspring/decimal"
)

const ruleColumns = `
	id, user_id, name, merchant_pattern, card_last4, amount_min, amount_max, category,
	priority, confidence, enabled, origin, use_count, created_at, updated_at, match_type, match_field`

// CreateRule inserts a category rule and sets its ID.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.createRule(ctx, s.db, rule)
}

func (s *SQLiteStorage) createRule(ctx context.Context, q queryable, rule *model.CategoryRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	if rule.Origin == "" {
		rule.Origin = model.OriginUser
	}
	rule.MatchType = rule.MatchType.OrDefault()
	rule.MatchField = rule.MatchField.OrDefault()

	now := s.now()
	result, err := q.ExecContext(ctx, `
		INSERT INTO category_rules (
			user_id, name, merchant_pattern, card_last4, amount_min, amount_max, category,
			priority, confidence, enabled, origin, use_count, created_at, updated_at,
			match_type, match_field
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`, rule.UserID, rule.Name, rule.MerchantPattern, rule.CardLast4,
		nullDecimal(rule.AmountMin), nullDecimal(rule.AmountMax), rule.Category,
		rule.Priority, rule.Confidence, rule.Enabled, rule.Origin, now, now,
		rule.MatchType, rule.MatchField)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.ID = id
	rule.UseCount = 0
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM category_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("rule %d", id))
	}
	return rule, nil
}

// ListRules returns a user's rules in evaluation order.
func (s *SQLiteStorage) ListRules(ctx context.Context, userID string, enabledOnly bool) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM category_rules WHERE user_id = ?`
	if enabledOnly {
		query += ` AND enabled = 1`
	}
	query += ` ORDER BY priority, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategoryRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// DisableRule turns a rule off. Rules are never deleted.
func (s *SQLiteStorage) DisableRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE category_rules SET enabled = 0, updated_at = ? WHERE id = ?`, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to disable rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// IncrementRuleUse records one more transaction categorized by the rule.
func (s *SQLiteStorage) IncrementRuleUse(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE category_rules SET use_count = use_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to increment rule use: %w", err)
	}
	return nil
}

func scanRule(row scanner) (*model.CategoryRule, error) {
	var rule model.CategoryRule
	var amountMin, amountMax decimal.NullDecimal
	if err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Name, &rule.MerchantPattern, &rule.CardLast4,
		&amountMin, &amountMax, &rule.Category, &rule.Priority, &rule.Confidence,
		&rule.Enabled, &rule.Origin, &rule.UseCount, &rule.CreatedAt, &rule.UpdatedAt,
		&rule.MatchType, &rule.MatchField,
	); err != nil {
		return nil, err
	}
	if amountMin.Valid {
		rule.AmountMin = &amountMin.Decimal
	}
	if amountMax.Valid {
		rule.AmountMax = &amountMax.Decimal
	}
	return &rule, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
