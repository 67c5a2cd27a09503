package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Mail accounts, sync checkpoints, raw messages and transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS mail_accounts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					provider TEXT NOT NULL,
					address TEXT NOT NULL,
					label TEXT NOT NULL DEFAULT '',
					sender_filter TEXT NOT NULL DEFAULT '[]',
					timezone TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'active',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(provider, address)
				)`,

				`CREATE TABLE IF NOT EXISTS sync_checkpoints (
					account_id TEXT PRIMARY KEY,
					cursor TEXT NOT NULL DEFAULT '',
					last_synced_at DATETIME,
					failure_count INTEGER NOT NULL DEFAULT 0,
					fetched_messages INTEGER NOT NULL DEFAULT 0,
					lease_owner TEXT,
					lease_expires_at INTEGER,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (account_id) REFERENCES mail_accounts(id)
				)`,

				`CREATE TABLE IF NOT EXISTS raw_messages (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					account_id TEXT NOT NULL,
					provider_message_id TEXT NOT NULL,
					thread_id TEXT NOT NULL DEFAULT '',
					sender TEXT NOT NULL DEFAULT '',
					subject TEXT NOT NULL DEFAULT '',
					received_at DATETIME NOT NULL,
					body TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'unprocessed',
					attempts INTEGER NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					processed_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(account_id, provider_message_id),
					FOREIGN KEY (account_id) REFERENCES mail_accounts(id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_raw_messages_status ON raw_messages(account_id, status)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					natural_key TEXT NOT NULL UNIQUE,
					account_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					message_id INTEGER NOT NULL,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					date DATETIME NOT NULL,
					card_last4 TEXT NOT NULL DEFAULT '',
					merchant TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					reference TEXT NOT NULL DEFAULT '',
					parse_confidence REAL NOT NULL DEFAULT 0,
					extraction_method TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					category_source TEXT NOT NULL DEFAULT 'none',
					category_confidence REAL NOT NULL DEFAULT 0,
					rule_id INTEGER,
					needs_review INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (account_id) REFERENCES mail_accounts(id),
					FOREIGN KEY (message_id) REFERENCES raw_messages(id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, date)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(user_id, category)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Categories and category rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS categories (
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, name)
				)`,

				`CREATE TABLE IF NOT EXISTS category_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					merchant_pattern TEXT NOT NULL DEFAULT '',
					card_last4 TEXT NOT NULL DEFAULT '',
					amount_min TEXT,
					amount_max TEXT,
					category TEXT NOT NULL,
					priority INTEGER NOT NULL DEFAULT 100,
					confidence REAL NOT NULL DEFAULT 0.8,
					enabled INTEGER NOT NULL DEFAULT 1,
					origin TEXT NOT NULL DEFAULT 'user',
					use_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_category_rules_user ON category_rules(user_id, enabled, priority)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Corrections and rule suggestions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS corrections (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					old_category TEXT NOT NULL DEFAULT '',
					new_category TEXT NOT NULL,
					merchant TEXT NOT NULL DEFAULT '',
					card_last4 TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_corrections_transaction ON corrections(transaction_id)`,
				`CREATE TRIGGER IF NOT EXISTS corrections_no_update BEFORE UPDATE ON corrections
				BEGIN
					SELECT RAISE(ABORT, 'corrections are append-only');
				END`,
				`CREATE TRIGGER IF NOT EXISTS corrections_no_delete BEFORE DELETE ON corrections
				BEGIN
					SELECT RAISE(ABORT, 'corrections are append-only');
				END`,

				`CREATE TABLE IF NOT EXISTS rule_suggestions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					merchant TEXT NOT NULL,
					card_last4 TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL,
					evidence INTEGER NOT NULL DEFAULT 1,
					status TEXT NOT NULL DEFAULT 'pending',
					rule_id INTEGER,
					reason TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_rule_suggestions_pending
					ON rule_suggestions(user_id, merchant, card_last4, category)
					WHERE status = 'pending'`,
				`CREATE INDEX IF NOT EXISTS idx_rule_suggestions_status ON rule_suggestions(user_id, status)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Inference decision log and daily budget",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS inference_decisions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					model TEXT NOT NULL DEFAULT '',
					prompt TEXT NOT NULL DEFAULT '',
					response TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					confidence REAL NOT NULL DEFAULT 0,
					prompt_tokens INTEGER NOT NULL DEFAULT 0,
					completion_tokens INTEGER NOT NULL DEFAULT 0,
					cost_units REAL NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, kind, fingerprint)
				)`,

				`CREATE TABLE IF NOT EXISTS inference_budget (
					user_id TEXT NOT NULL,
					day TEXT NOT NULL,
					used INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (user_id, day)
				)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Rule match type and match field",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE category_rules ADD COLUMN match_type TEXT NOT NULL DEFAULT 'contains'`,
				`ALTER TABLE category_rules ADD COLUMN match_field TEXT NOT NULL DEFAULT 'merchant'`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
