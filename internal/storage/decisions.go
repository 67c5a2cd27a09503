package storage

import (
	"context"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// GetDecision returns the cached inference decision for fingerprint, or ErrNotFound.
func (s *SQLiteStorage) GetDecision(ctx context.Context, userID string, kind model.DecisionKind, fingerprint string) (*model.InferenceDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	var d model.InferenceDecision
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, fingerprint, model, prompt, response, category, confidence,
			prompt_tokens, completion_tokens, cost_units, created_at
		FROM inference_decisions
		WHERE user_id = ? AND kind = ? AND fingerprint = ?
	`, userID, kind, fingerprint).Scan(
		&d.ID, &d.UserID, &d.Kind, &d.Fingerprint, &d.Model, &d.Prompt, &d.Response, &d.Category,
		&d.Confidence, &d.PromptTokens, &d.CompletionTokens, &d.CostUnits, &d.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "decision "+fingerprint)
	}
	return &d, nil
}

// SaveDecision records an inference decision. A decision already cached under the same
// fingerprint is replaced.
func (s *SQLiteStorage) SaveDecision(ctx context.Context, d *model.InferenceDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if err := validateString(d.Fingerprint, "fingerprint"); err != nil {
		return err
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inference_decisions (
			user_id, kind, fingerprint, model, prompt, response, category, confidence,
			prompt_tokens, completion_tokens, cost_units, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, kind, fingerprint) DO UPDATE SET
			model = excluded.model,
			prompt = excluded.prompt,
			response = excluded.response,
			category = excluded.category,
			confidence = excluded.confidence,
			prompt_tokens = excluded.prompt_tokens,
			completion_tokens = excluded.completion_tokens,
			cost_units = excluded.cost_units,
			created_at = excluded.created_at
	`, d.UserID, d.Kind, d.Fingerprint, d.Model, d.Prompt, d.Response, d.Category, d.Confidence,
		d.PromptTokens, d.CompletionTokens, d.CostUnits, now); err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	d.CreatedAt = now
	return nil
}

// InvalidateDecisions drops cached decisions of kind for the user. An empty kind drops all.
func (s *SQLiteStorage) InvalidateDecisions(ctx context.Context, userID string, kind model.DecisionKind) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query := `DELETE FROM inference_decisions WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate decisions: %w", err)
	}
	return result.RowsAffected()
}
