package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/config"
	"github.com/lrocampoa/ExpenseTracker/internal/engine"
	"github.com/lrocampoa/ExpenseTracker/internal/ingest"
	"github.com/lrocampoa/ExpenseTracker/internal/llm"
	"github.com/lrocampoa/ExpenseTracker/internal/mailbox"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/parser"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
	"github.com/lrocampoa/ExpenseTracker/internal/pipeline"
	"github.com/lrocampoa/ExpenseTracker/internal/storage"
)

// app holds the wired components a command needs.
type app struct {
	cfg          *config.Config
	store        *storage.SQLiteStorage
	logger       *slog.Logger
	fallback     *llm.Fallback
	orchestrator *pipeline.Orchestrator
	suggester    *pattern.Suggester
	service      *pipeline.Service
}

// initStorage opens the configured database and runs migrations.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newApp loads configuration, opens storage and wires the pipeline.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
	}

	// A nil *llm.Fallback stored in an interface is not a nil interface, so the
	// extractor and categorizer stay untyped nil when inference is off.
	var (
		extractor   parser.Extractor
		categorizer engine.Categorizer
	)
	client, err := llm.NewClient(cfg.ClientConfig())
	switch {
	case err == nil:
		budget := storage.NewSQLiteBudget(store, cfg.LLM.DailyBudget)
		a.fallback = llm.NewFallback(client, store, budget, cfg.FallbackConfig(), a.logger)
		extractor = a.fallback
		categorizer = a.fallback
	case errors.Is(err, common.ErrInferenceDisabled):
		a.logger.Debug("Inference fallback disabled")
	default:
		_ = store.Close()
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	mailboxCfg := cfg.MailboxConfig(a.logger)
	adapters := func(ctx context.Context, account model.MailAccount) (mailbox.Adapter, error) {
		return mailbox.New(ctx, account, mailboxCfg)
	}

	a.orchestrator = pipeline.New(
		store,
		ingest.NewService(store, cfg.IngestConfig(), a.logger),
		parser.New(extractor, a.logger),
		engine.NewWithConfig(store, categorizer, a.logger, engine.Config{MinFallbackConfidence: cfg.Pipeline.MinConfidence}),
		adapters,
		cfg.PipelineConfig(),
		a.logger,
	)
	a.suggester = pattern.NewSuggester(store, a.logger)
	a.service = pipeline.NewService(store, a.orchestrator, a.suggester, a.logger)

	return a, nil
}

// scheduler returns a scheduler over every enabled account.
func (a *app) scheduler() *pipeline.Scheduler {
	return pipeline.NewScheduler(a.store, a.orchestrator, a.cfg.Pipeline.Concurrency, a.logger)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}

// withStorage runs fn against the migrated database without wiring the pipeline.
func withStorage(cmd *cobra.Command, fn func(cfg *config.Config, store *storage.SQLiteStorage) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(cfg, store)
}
