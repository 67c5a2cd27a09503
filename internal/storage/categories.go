package storage

import (
	"context"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// EnsureCategory creates the category if the user does not have it yet.
func (s *SQLiteStorage) EnsureCategory(ctx context.Context, userID, name, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, description, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, name) DO NOTHING
	`, userID, name, description, s.now()); err != nil {
		return fmt.Errorf("failed to ensure category: %w", err)
	}
	return nil
}

// ListCategories returns the user's active categories ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, name, description, is_active, created_at
		FROM categories
		WHERE user_id = ? AND is_active = 1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.UserID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
