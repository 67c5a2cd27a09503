package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// FallbackConfig tunes the Fallback decorator.
type FallbackConfig struct {
	Retry           service.RetryOptions
	CallTimeout     time.Duration
	RateLimit       int
	CostPer1KTokens float64
}

// DefaultFallbackConfig returns the settings used when none are configured.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		CallTimeout: 30 * time.Second,
		RateLimit:   60,
	}
}

// Fallback guards a Client with a decision cache, a daily budget, a rate limit and
// retries. Cache hits spend no budget.
type Fallback struct {
	client    Client
	decisions service.DecisionLog
	budget    Budget
	limiter   *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time
	exhausted map[string]bool
	cfg       FallbackConfig
	mu        sync.Mutex
}

// NewFallback creates a Fallback around client.
func NewFallback(client Client, decisions service.DecisionLog, budget Budget, cfg FallbackConfig, logger *slog.Logger) *Fallback {
	def := DefaultFallbackConfig()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}

	return &Fallback{
		client:    client,
		decisions: decisions,
		budget:    budget,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimit)), cfg.RateLimit),
		logger:    common.LoggerOrDefault(logger),
		now:       time.Now,
		exhausted: make(map[string]bool),
		cfg:       cfg,
	}
}

// Extract reads alert fields a template could not.
func (f *Fallback) Extract(ctx context.Context, req model.ExtractionRequest) (*model.ExtractedFields, error) {
	fp := ExtractionFingerprint(req)

	cached, err := f.lookup(ctx, req.UserID, model.DecisionExtraction, fp)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		var fields model.ExtractedFields
		if err := json.Unmarshal([]byte(cached.Response), &fields); err == nil {
			f.logger.Debug("Extraction decision cache hit", "user", req.UserID, "template", req.Template)
			return &fields, nil
		}
	}

	if err := f.admit(ctx, req.UserID); err != nil {
		return nil, err
	}

	var resp ExtractionResponse
	err = f.call(ctx, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = f.client.Extract(callCtx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract with inference: %w", err)
	}

	f.record(ctx, req.UserID, model.DecisionExtraction, fp, resp.Usage, resp.Fields, "", resp.Fields.Confidence)
	return &resp.Fields, nil
}

// Categorize asks the provider to pick one of req.Categories.
func (f *Fallback) Categorize(ctx context.Context, req model.CategorizationRequest) (*model.CategoryGuess, error) {
	fp := CategorizationFingerprint(req)

	cached, err := f.lookup(ctx, req.UserID, model.DecisionCategorization, fp)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		f.logger.Debug("Categorization decision cache hit", "user", req.UserID, "merchant", req.Merchant)
		guess := model.CategoryGuess{Category: cached.Category, Confidence: cached.Confidence}
		_ = json.Unmarshal([]byte(cached.Response), &guess)
		return &guess, nil
	}

	if err := f.admit(ctx, req.UserID); err != nil {
		return nil, err
	}

	var resp CategorizationResponse
	err = f.call(ctx, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = f.client.Categorize(callCtx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to categorize with inference: %w", err)
	}

	f.record(ctx, req.UserID, model.DecisionCategorization, fp, resp.Usage, resp.Guess, resp.Guess.Category, resp.Guess.Confidence)
	return &resp.Guess, nil
}

func (f *Fallback) lookup(ctx context.Context, userID string, kind model.DecisionKind, fp string) (*model.InferenceDecision, error) {
	if f.decisions == nil {
		return nil, nil
	}
	decision, err := f.decisions.GetDecision(ctx, userID, kind, fp)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read decision log: %w", err)
	}
	return decision, nil
}

// admit waits for a rate limit token and then spends one budget unit, so a call
// canceled while waiting costs nothing. Once a user's budget is exhausted for the
// day, later calls fail without waiting.
func (f *Fallback) admit(ctx context.Context, userID string) error {
	if f.budget == nil {
		return common.ErrBudgetExhausted
	}
	now := f.now()
	key := budgetKey(userID, now)
	if f.isExhausted(key) {
		return common.ErrBudgetExhausted
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter canceled: %w", err)
	}

	ok, err := f.budget.Reserve(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("failed to reserve inference budget: %w", err)
	}
	if !ok {
		f.markExhausted(key)
		f.logger.Info("Inference budget exhausted", "user", userID)
		return common.ErrBudgetExhausted
	}
	return nil
}

func (f *Fallback) isExhausted(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted[key]
}

func (f *Fallback) markExhausted(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exhausted[key] = true
}

func (f *Fallback) call(ctx context.Context, op func(context.Context) error) error {
	return common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
		defer cancel()
		return op(callCtx)
	}, f.cfg.Retry)
}

// record stores the decision. A failed write only costs a future cache miss.
func (f *Fallback) record(ctx context.Context, userID string, kind model.DecisionKind, fp string, usage Usage, result any, category string, confidence float64) {
	if f.decisions == nil {
		return
	}

	response, err := json.Marshal(result)
	if err != nil {
		f.logger.Warn("Failed to encode inference decision", "error", err)
		return
	}

	tokens := usage.PromptTokens + usage.CompletionTokens
	decision := &model.InferenceDecision{
		UserID:           userID,
		Kind:             kind,
		Fingerprint:      fp,
		Model:            usage.Model,
		Prompt:           usage.Prompt,
		Response:         string(response),
		Category:         category,
		Confidence:       confidence,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUnits:        float64(tokens) / 1000 * f.cfg.CostPer1KTokens,
		CreatedAt:        f.now(),
	}
	if err := f.decisions.SaveDecision(ctx, decision); err != nil {
		f.logger.Warn("Failed to save inference decision", "kind", kind, "error", err)
	}
}
