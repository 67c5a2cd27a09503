package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteBudget enforces a per-user daily cap on fallback inference calls.
// The check and the increment happen in one statement, so concurrent callers
// can never spend more than the limit.
type SQLiteBudget struct {
	db    *sql.DB
	limit int
}

// NewSQLiteBudget creates a budget backed by the storage's database.
func NewSQLiteBudget(s *SQLiteStorage, dailyLimit int) *SQLiteBudget {
	return &SQLiteBudget{db: s.db, limit: dailyLimit}
}

// Reserve spends one unit of the user's budget for day. It reports false when the
// budget is exhausted. A limit of zero or less never reserves.
func (b *SQLiteBudget) Reserve(ctx context.Context, userID string, day time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if b.limit <= 0 {
		return false, nil
	}

	result, err := b.db.ExecContext(ctx, `
		INSERT INTO inference_budget (user_id, day, used)
		SELECT ?, ?, 1 WHERE ? > 0
		ON CONFLICT(user_id, day) DO UPDATE SET used = used + 1 WHERE used < ?
	`, userID, dayKey(day), b.limit, b.limit)
	if err != nil {
		return false, fmt.Errorf("failed to reserve inference budget: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reserve inference budget: %w", err)
	}
	return n == 1, nil
}

// Used returns how many units the user has spent on day.
func (b *SQLiteBudget) Used(ctx context.Context, userID string, day time.Time) (int, error) {
	var used int
	err := b.db.QueryRowContext(ctx,
		`SELECT used FROM inference_budget WHERE user_id = ? AND day = ?`, userID, dayKey(day)).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read inference budget: %w", err)
	}
	return used, nil
}

func dayKey(day time.Time) string {
	return day.Format(time.DateOnly)
}
