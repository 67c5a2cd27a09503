package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidAccount     = errors.New("invalid mail account")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRule        = errors.New("invalid category rule")
	ErrInvalidSuggestion  = errors.New("invalid rule suggestion")
	ErrInvalidStatus      = errors.New("invalid status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateAccount(account *model.MailAccount) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if account.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidAccount)
	}
	if account.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidAccount)
	}
	if !account.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidAccount, account.Provider)
	}
	if account.Address == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidAccount)
	}
	return nil
}

func validateAccountStatus(status model.AccountStatus) error {
	switch status {
	case model.AccountActive, model.AccountDegraded, model.AccountDisabled:
		return nil
	}
	return fmt.Errorf("%w: account status %q", ErrInvalidStatus, status)
}

func validateMessageStatus(status model.MessageStatus) error {
	switch status {
	case model.MessageUnprocessed, model.MessageProcessed, model.MessageFailed, model.MessageReview:
		return nil
	}
	return fmt.Errorf("%w: message status %q", ErrInvalidStatus, status)
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.NaturalKey == "" {
		return fmt.Errorf("%w: missing natural key", ErrInvalidTransaction)
	}
	if txn.AccountID == "" {
		return fmt.Errorf("%w: missing account ID", ErrInvalidTransaction)
	}
	if txn.MessageID == 0 {
		return fmt.Errorf("%w: missing message ID", ErrInvalidTransaction)
	}
	if txn.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return nil
}

func validateRule(rule *model.CategoryRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidRule)
	}
	if !rule.MatchType.Valid() {
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, rule.MatchType)
	}
	if !rule.MatchField.Valid() {
		return fmt.Errorf("%w: unknown match field %q", ErrInvalidRule, rule.MatchField)
	}
	if rule.Specificity() == 0 && rule.MatchType.OrDefault() != model.MatchAlways {
		return fmt.Errorf("%w: rule must constrain merchant, card or amount", ErrInvalidRule)
	}
	if rule.AmountMin != nil && rule.AmountMax != nil && rule.AmountMin.GreaterThan(*rule.AmountMax) {
		return fmt.Errorf("%w: amount_min greater than amount_max", ErrInvalidRule)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRule)
	}
	return nil
}

func validateSuggestion(s *model.RuleSuggestion) error {
	if s == nil {
		return fmt.Errorf("%w: suggestion", ErrNilParameter)
	}
	if s.UserID == "" || s.Merchant == "" || s.Category == "" {
		return fmt.Errorf("%w: user, merchant and category are required", ErrInvalidSuggestion)
	}
	return nil
}
