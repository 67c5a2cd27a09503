package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// Service is the operation surface shared by the CLI and the HTTP API.
type Service struct {
	storage      service.Storage
	orchestrator *Orchestrator
	suggester    *pattern.Suggester
	logger       *slog.Logger
}

// NewService creates the operation surface over an orchestrator and suggester.
func NewService(storage service.Storage, orchestrator *Orchestrator, suggester *pattern.Suggester, logger *slog.Logger) *Service {
	return &Service{
		storage:      storage,
		orchestrator: orchestrator,
		suggester:    suggester,
		logger:       common.LoggerOrDefault(logger),
	}
}

// TriggerImport syncs and processes one account.
func (s *Service) TriggerImport(ctx context.Context, accountID string) (model.RunResult, error) {
	account, err := s.storage.GetAccount(ctx, accountID)
	if err != nil {
		return model.RunResult{AccountID: accountID}, fmt.Errorf("failed to get account: %w", err)
	}
	return s.orchestrator.Run(ctx, *account)
}

// Reprocess re-derives one transaction from its source message.
func (s *Service) Reprocess(ctx context.Context, transactionID string) (*model.Transaction, error) {
	return s.orchestrator.Reprocess(ctx, transactionID)
}

// ApplyCorrection sets a transaction's category by hand and learns from it.
func (s *Service) ApplyCorrection(ctx context.Context, transactionID, category string) (*pattern.CorrectionResult, error) {
	return s.suggester.ApplyCorrection(ctx, transactionID, category)
}

// AcceptSuggestion promotes a pending suggestion to a rule.
func (s *Service) AcceptSuggestion(ctx context.Context, id int64) (*model.CategoryRule, error) {
	return s.suggester.Accept(ctx, id)
}

// RejectSuggestion rejects a pending suggestion.
func (s *Service) RejectSuggestion(ctx context.Context, id int64, reason string) error {
	return s.suggester.Reject(ctx, id, reason)
}

// ListSuggestions returns the user's suggestions in the given state.
func (s *Service) ListSuggestions(ctx context.Context, userID string, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	return s.storage.ListSuggestions(ctx, userID, status)
}

// Transaction returns one transaction.
func (s *Service) Transaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}
