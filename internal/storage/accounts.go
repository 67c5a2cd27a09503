package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// CreateAccount registers a new mail account and its empty checkpoint.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.MailAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	if account.Status == "" {
		account.Status = model.AccountActive
	}

	filter, err := json.Marshal(account.SenderFilter)
	if err != nil {
		return fmt.Errorf("failed to encode sender filter: %w", err)
	}

	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mail_accounts (
				id, user_id, provider, address, label, sender_filter, timezone, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, account.ID, account.UserID, account.Provider, account.Address, account.Label,
			string(filter), account.Timezone, account.Status, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("account %s/%s: %w", account.Provider, account.Address, common.ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to create account: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sync_checkpoints (account_id) VALUES (?)`, account.ID); err != nil {
			return fmt.Errorf("failed to create checkpoint: %w", err)
		}

		account.CreatedAt = now
		account.UpdatedAt = now
		return nil
	})
}

// GetAccount retrieves a mail account by ID.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.MailAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, address, label, sender_filter, timezone, status, created_at, updated_at
		FROM mail_accounts
		WHERE id = ?
	`, id)

	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, "account "+id)
	}
	return account, nil
}

// ListAccounts returns every mail account ordered by creation.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]model.MailAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, provider, address, label, sender_filter, timezone, status, created_at, updated_at
		FROM mail_accounts
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.MailAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus changes an account's health status.
func (s *SQLiteStorage) UpdateAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccountStatus(status); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE mail_accounts SET status = ?, updated_at = ? WHERE id = ?`, status, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*model.MailAccount, error) {
	var account model.MailAccount
	var filter string
	if err := row.Scan(
		&account.ID, &account.UserID, &account.Provider, &account.Address, &account.Label,
		&filter, &account.Timezone, &account.Status, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if filter != "" {
		if err := json.Unmarshal([]byte(filter), &account.SenderFilter); err != nil {
			return nil, fmt.Errorf("failed to decode sender filter: %w", err)
		}
	}
	return &account, nil
}
