// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	NeedsReview *bool
	AccountID   string
	UserID      string
	Category    string
	Limit       int
	Offset      int
}

// AccountStore persists connected mailboxes.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.MailAccount) error
	GetAccount(ctx context.Context, id string) (*model.MailAccount, error)
	ListAccounts(ctx context.Context) ([]model.MailAccount, error)
	UpdateAccountStatus(ctx context.Context, id string, status model.AccountStatus) error
}

// CheckpointStore persists per-account sync cursors under a single-writer lease.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context, accountID string) (*model.SyncCheckpoint, error)
	CommitCheckpoint(ctx context.Context, accountID, owner, cursor string, fetched int) error
	ResetCheckpoint(ctx context.Context, accountID string) error
	AcquireLease(ctx context.Context, accountID, owner string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, accountID, owner string) error
	RecordSyncFailure(ctx context.Context, accountID string) (int, error)
}

// MessageStore persists raw provider messages.
type MessageStore interface {
	SaveRawMessages(ctx context.Context, accountID string, events []model.MailEvent) (model.SyncResult, error)
	GetRawMessage(ctx context.Context, id int64) (*model.RawMessage, error)
	ListPendingMessages(ctx context.Context, accountID string, maxAttempts int) ([]model.RawMessage, error)
	MarkMessage(ctx context.Context, id int64, status model.MessageStatus, lastErr string) error
}

// TransactionStore persists transactions keyed by their natural key.
type TransactionStore interface {
	UpsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionByNaturalKey(ctx context.Context, naturalKey string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateTransactionCategory(ctx context.Context, id string, decision model.CategoryDecision) error
}

// RuleStore persists category rules. Rules are disabled, never deleted.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *model.CategoryRule) error
	GetRule(ctx context.Context, id int64) (*model.CategoryRule, error)
	ListRules(ctx context.Context, userID string, enabledOnly bool) ([]model.CategoryRule, error)
	DisableRule(ctx context.Context, id int64) error
	IncrementRuleUse(ctx context.Context, id int64) error
}

// CategoryStore persists the categories available to each user.
type CategoryStore interface {
	EnsureCategory(ctx context.Context, userID, name, description string) error
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
}

// CorrectionStore persists append-only manual corrections.
type CorrectionStore interface {
	RecordCorrection(ctx context.Context, correction *model.Correction) error
	// CorrectTransaction records correction and applies decision to the corrected
	// transaction atomically.
	CorrectTransaction(ctx context.Context, correction *model.Correction, decision model.CategoryDecision) error
	ListCorrections(ctx context.Context, transactionID string) ([]model.Correction, error)
}

// SuggestionStore persists rule suggestions.
type SuggestionStore interface {
	// UpsertPendingSuggestion inserts a pending suggestion or increments the evidence of
	// the existing pending suggestion with the same predicate and category.
	UpsertPendingSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) (bool, error)
	HasRejectedSuggestion(ctx context.Context, userID, merchant, category string) (bool, error)
	GetSuggestion(ctx context.Context, id int64) (*model.RuleSuggestion, error)
	ListSuggestions(ctx context.Context, userID string, status model.SuggestionStatus) ([]model.RuleSuggestion, error)
	// AcceptSuggestion creates rule and marks the suggestion accepted in one transaction.
	AcceptSuggestion(ctx context.Context, suggestion *model.RuleSuggestion, rule *model.CategoryRule) error
	UpdateSuggestionStatus(ctx context.Context, suggestion *model.RuleSuggestion) error
}

// DecisionLog caches fallback inference decisions by fingerprint.
type DecisionLog interface {
	GetDecision(ctx context.Context, userID string, kind model.DecisionKind, fingerprint string) (*model.InferenceDecision, error)
	SaveDecision(ctx context.Context, decision *model.InferenceDecision) error
	InvalidateDecisions(ctx context.Context, userID string, kind model.DecisionKind) (int64, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	AccountStore
	CheckpointStore
	MessageStore
	TransactionStore
	RuleStore
	CategoryStore
	CorrectionStore
	SuggestionStore
	DecisionLog

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
