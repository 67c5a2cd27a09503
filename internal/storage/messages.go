package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// SaveRawMessages persists fetched events in one transaction.
// Events already stored for the account are skipped, so re-delivery is harmless.
func (s *SQLiteStorage) SaveRawMessages(ctx context.Context, accountID string, events []model.MailEvent) (model.SyncResult, error) {
	result := model.SyncResult{Fetched: len(events)}

	if err := validateContext(ctx); err != nil {
		return result, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return result, err
	}
	if len(events) == 0 {
		return result, nil
	}

	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_messages (
				account_id, provider_message_id, thread_id, sender, subject,
				received_at, body, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, provider_message_id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, event := range events {
			if event.ProviderMessageID == "" {
				return fmt.Errorf("%w: provider message ID", ErrEmptyString)
			}
			res, err := stmt.ExecContext(ctx,
				accountID, event.ProviderMessageID, event.ThreadID, event.Sender, event.Subject,
				event.ReceivedAt.UTC(), event.Body, model.MessageUnprocessed, now)
			if err != nil {
				return fmt.Errorf("failed to insert message %s: %w", event.ProviderMessageID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to insert message %s: %w", event.ProviderMessageID, err)
			}
			if n == 0 {
				result.Skipped++
			} else {
				result.Stored++
			}
		}
		return nil
	})
	if err != nil {
		return model.SyncResult{Fetched: len(events)}, err
	}
	return result, nil
}

const rawMessageColumns = `
	id, account_id, provider_message_id, thread_id, sender, subject, received_at,
	body, status, attempts, last_error, processed_at`

// GetRawMessage retrieves a stored message by ID.
func (s *SQLiteStorage) GetRawMessage(ctx context.Context, id int64) (*model.RawMessage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+rawMessageColumns+` FROM raw_messages WHERE id = ?`, id)
	msg, err := scanRawMessage(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("message %d", id))
	}
	return msg, nil
}

// ListPendingMessages returns the account's messages awaiting parsing, oldest first.
// Failed messages are retried until they reach maxAttempts.
func (s *SQLiteStorage) ListPendingMessages(ctx context.Context, accountID string, maxAttempts int) ([]model.RawMessage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+rawMessageColumns+`
		FROM raw_messages
		WHERE account_id = ?
			AND (status = ? OR (status = ? AND attempts < ?))
		ORDER BY received_at, id
	`, accountID, model.MessageUnprocessed, model.MessageFailed, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.RawMessage
	for rows.Next() {
		msg, err := scanRawMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// MarkMessage records the outcome of one processing attempt.
func (s *SQLiteStorage) MarkMessage(ctx context.Context, id int64, status model.MessageStatus, lastErr string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMessageStatus(status); err != nil {
		return err
	}

	var processedAt sql.NullTime
	if status == model.MessageProcessed || status == model.MessageReview {
		processedAt = sql.NullTime{Time: s.now(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE raw_messages
		SET status = ?, last_error = ?, attempts = attempts + 1,
			processed_at = COALESCE(?, processed_at)
		WHERE id = ?
	`, status, lastErr, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark message: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanRawMessage(row scanner) (*model.RawMessage, error) {
	var msg model.RawMessage
	var processedAt sql.NullTime
	if err := row.Scan(
		&msg.ID, &msg.AccountID, &msg.ProviderMessageID, &msg.ThreadID, &msg.Sender, &msg.Subject,
		&msg.ReceivedAt, &msg.Body, &msg.Status, &msg.Attempts, &msg.LastError, &processedAt,
	); err != nil {
		return nil, err
	}
	msg.ProcessedAt = timePtr(processedAt)
	return &msg, nil
}
