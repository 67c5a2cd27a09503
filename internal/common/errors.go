// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrPersistenceConflict is returned when a concurrent upsert on the same
	// natural key lost the race. Callers treat it as a no-op.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// Sync lease errors.
	ErrLeaseHeld = errors.New("sync lease held by another worker")
	ErrLeaseLost = errors.New("sync lease lost")

	// Parsing outcomes.
	ErrTemplateUnrecognized = errors.New("no notification template matched")

	// Inference errors.
	ErrBudgetExhausted   = errors.New("inference budget exhausted")
	ErrInferenceDisabled = errors.New("inference fallback disabled")

	// Account errors.
	ErrAccountDisabled     = errors.New("mail account disabled")
	ErrUnsupportedProvider = errors.New("unsupported mailbox provider")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TransientProviderError wraps a network or provider failure that may succeed on retry.
type TransientProviderError struct {
	Err      error
	Provider string
	Op       string
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("%s %s: transient provider error: %v", e.Provider, e.Op, e.Err)
}

func (e *TransientProviderError) Unwrap() error {
	return e.Err
}

// NewTransientProviderError wraps err as a transient failure of op against provider.
func NewTransientProviderError(provider, op string, err error) error {
	return &TransientProviderError{Provider: provider, Op: op, Err: err}
}

// CursorExpiredError reports that a provider no longer recognizes the stored cursor
// even after a baseline reset.
type CursorExpiredError struct {
	AccountID string
}

func (e *CursorExpiredError) Error() string {
	return fmt.Sprintf("sync cursor expired for account %s", e.AccountID)
}

// ExtractionIncompleteError reports mandatory fields that neither the template nor
// the inference fallback could produce.
type ExtractionIncompleteError struct {
	Err      error
	Template string
	Missing  []string
}

func (e *ExtractionIncompleteError) Error() string {
	msg := fmt.Sprintf("template %s: missing mandatory fields: %s", e.Template, strings.Join(e.Missing, ", "))
	if e.Err != nil {
		msg += fmt.Sprintf(" (fallback: %v)", e.Err)
	}
	return msg
}

func (e *ExtractionIncompleteError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var transient *TransientProviderError
	if errors.As(err, &transient) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

// IsTransient reports whether err is a failure the pipeline should retry on a later run
// rather than send to manual review.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMaxRetries) {
		return true
	}
	return IsRetryable(err)
}
