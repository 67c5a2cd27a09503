// Package pipeline drives mailbox accounts from sync through parsing, categorization
// and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/engine"
	"github.com/lrocampoa/ExpenseTracker/internal/ingest"
	"github.com/lrocampoa/ExpenseTracker/internal/mailbox"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/parser"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	ingest.Store
	service.TransactionStore
	service.RuleStore
	service.CategoryStore
}

// AdapterFactory builds the mailbox adapter for an account.
type AdapterFactory func(ctx context.Context, account model.MailAccount) (mailbox.Adapter, error)

// Config holds configuration options for the orchestrator.
type Config struct {
	// MaxAttempts is how many times a message is tried before it goes to review.
	MaxAttempts int
	// Parallelism bounds concurrent parsing within one account.
	Parallelism int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Parallelism: 4,
	}
}

// Orchestrator runs the pipeline for one account at a time.
type Orchestrator struct {
	store    Store
	ingester *ingest.Service
	parser   *parser.Parser
	engine   *engine.Engine
	adapters AdapterFactory
	logger   *slog.Logger
	cfg      Config
}

// New creates an orchestrator. Zero config fields take their defaults.
func New(store Store, ingester *ingest.Service, p *parser.Parser, e *engine.Engine, adapters AdapterFactory, cfg Config, logger *slog.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}

	return &Orchestrator{
		store:    store,
		ingester: ingester,
		parser:   p,
		engine:   e,
		adapters: adapters,
		logger:   common.LoggerOrDefault(logger),
		cfg:      cfg,
	}
}

// Run syncs the account and processes every pending message. A failed sync does not
// stop messages already stored from being processed; its error is returned afterwards.
func (o *Orchestrator) Run(ctx context.Context, account model.MailAccount) (model.RunResult, error) {
	result := model.RunResult{AccountID: account.ID}

	sync, syncErr := o.Sync(ctx, account)
	result.Sync = sync
	if syncErr != nil {
		if errors.Is(syncErr, common.ErrAccountDisabled) || errors.Is(syncErr, common.ErrLeaseHeld) || ctx.Err() != nil {
			return result, syncErr
		}
		o.logger.Warn("Sync failed, processing stored messages", "account", account.ID, "error", syncErr)
	}

	processed, err := o.Process(ctx, account)
	processed.AccountID = account.ID
	processed.Sync = result.Sync
	if err != nil {
		return processed, err
	}
	if syncErr != nil {
		return processed, fmt.Errorf("failed to sync account %s: %w", account.ID, syncErr)
	}
	return processed, nil
}

// Sync pulls new messages for the account without processing them.
func (o *Orchestrator) Sync(ctx context.Context, account model.MailAccount) (model.SyncResult, error) {
	adapter, err := o.adapters(ctx, account)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("failed to create mailbox adapter: %w", err)
	}
	return o.ingester.Sync(ctx, account, adapter)
}

type parseOutcome struct {
	candidate *model.TransactionCandidate
	err       error
}

// Process parses, categorizes and persists the account's pending messages.
func (o *Orchestrator) Process(ctx context.Context, account model.MailAccount) (model.RunResult, error) {
	result := model.RunResult{AccountID: account.ID}

	rules, err := pattern.LoadRuleSet(ctx, o.store, account.UserID)
	if err != nil {
		return result, err
	}

	messages, err := o.store.ListPendingMessages(ctx, account.ID, o.cfg.MaxAttempts)
	if err != nil {
		return result, fmt.Errorf("failed to list pending messages: %w", err)
	}
	if len(messages) == 0 {
		return result, nil
	}

	outcomes := o.parseAll(ctx, account, messages)

	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := o.handle(ctx, account, msg, outcomes[i], rules, &result); err != nil {
			return result, err
		}
	}

	o.logger.Info("Processing complete",
		"account", account.ID,
		"messages", len(messages),
		"parsed", result.Parsed,
		"no_match", result.NoMatch,
		"categorized", result.Categorized,
		"failed", result.Failed,
		"review", result.Review)

	return result, nil
}

// parseAll parses messages concurrently. Parse failures are per-message outcomes,
// so the group only stops on cancellation.
func (o *Orchestrator) parseAll(ctx context.Context, account model.MailAccount, messages []model.RawMessage) []parseOutcome {
	outcomes := make([]parseOutcome, len(messages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i, msg := range messages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = parseOutcome{err: err}
				return nil
			}
			candidate, err := o.parser.Parse(gctx, account, msg)
			outcomes[i] = parseOutcome{candidate: candidate, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) handle(ctx context.Context, account model.MailAccount, msg model.RawMessage, out parseOutcome, rules *pattern.RuleSet, result *model.RunResult) error {
	var incomplete *common.ExtractionIncompleteError

	switch {
	case out.err == nil:
	case errors.Is(out.err, common.ErrTemplateUnrecognized):
		result.NoMatch++
		return o.mark(ctx, msg, model.MessageProcessed, "")
	case errors.Is(out.err, context.Canceled):
		return out.err
	case errors.As(out.err, &incomplete):
		result.Review++
		o.logger.Warn("Extraction incomplete", "message", msg.ID, "template", incomplete.Template, "missing", incomplete.Missing)
		return o.mark(ctx, msg, model.MessageReview, out.err.Error())
	case common.IsTransient(out.err):
		return o.fail(ctx, msg, out.err, result)
	default:
		result.Review++
		o.logger.Warn("Parse failed", "message", msg.ID, "error", out.err)
		return o.mark(ctx, msg, model.MessageReview, out.err.Error())
	}

	result.Parsed++

	decision, err := o.engine.Categorize(ctx, *out.candidate, rules)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return o.fail(ctx, msg, err, result)
	}

	txn := model.NewTransaction(account, msg, *out.candidate, decision)
	created, err := o.store.UpsertTransaction(ctx, &txn)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrPersistenceConflict):
		o.logger.Debug("Concurrent upsert lost the race", "message", msg.ID, "natural_key", txn.NaturalKey)
	default:
		return o.fail(ctx, msg, fmt.Errorf("failed to save transaction: %w", err), result)
	}

	if txn.CategorySource != model.SourceNone {
		result.Categorized++
	}
	o.logger.Debug("Transaction saved",
		"message", msg.ID,
		"transaction", txn.ID,
		"created", created,
		"category", txn.Category,
		"source", txn.CategorySource)

	return o.mark(ctx, msg, model.MessageProcessed, "")
}

// fail records a retryable failure, sending the message to review once its attempts
// are used up.
func (o *Orchestrator) fail(ctx context.Context, msg model.RawMessage, cause error, result *model.RunResult) error {
	if msg.Attempts+1 >= o.cfg.MaxAttempts {
		result.Review++
		o.logger.Warn("Message out of attempts", "message", msg.ID, "attempts", msg.Attempts+1, "error", cause)
		return o.mark(ctx, msg, model.MessageReview, cause.Error())
	}

	result.Failed++
	o.logger.Info("Message failed, will retry", "message", msg.ID, "attempts", msg.Attempts+1, "error", cause)
	return o.mark(ctx, msg, model.MessageFailed, cause.Error())
}

func (o *Orchestrator) mark(ctx context.Context, msg model.RawMessage, status model.MessageStatus, lastErr string) error {
	if err := o.store.MarkMessage(ctx, msg.ID, status, lastErr); err != nil {
		return fmt.Errorf("failed to mark message %d: %w", msg.ID, err)
	}
	return nil
}

// Reprocess parses the transaction's source message again with the current templates
// and rules. The natural key is unchanged, so the row is updated in place and a manual
// category survives.
func (o *Orchestrator) Reprocess(ctx context.Context, transactionID string) (*model.Transaction, error) {
	existing, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	msg, err := o.store.GetRawMessage(ctx, existing.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source message: %w", err)
	}
	account, err := o.store.GetAccount(ctx, existing.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	rules, err := pattern.LoadRuleSet(ctx, o.store, account.UserID)
	if err != nil {
		return nil, err
	}

	candidate, err := o.parser.Parse(ctx, *account, *msg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %d: %w", msg.ID, err)
	}
	decision, err := o.engine.Categorize(ctx, *candidate, rules)
	if err != nil {
		return nil, err
	}

	txn := model.NewTransaction(*account, *msg, *candidate, decision)
	if _, err := o.store.UpsertTransaction(ctx, &txn); err != nil && !errors.Is(err, common.ErrPersistenceConflict) {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	o.logger.Info("Transaction reprocessed",
		"transaction", txn.ID,
		"category", txn.Category,
		"source", txn.CategorySource)
	return &txn, nil
}
