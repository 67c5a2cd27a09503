package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Runner processes one account.
type Runner interface {
	Run(ctx context.Context, account model.MailAccount) (model.RunResult, error)
}

// AccountLister lists the configured accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]model.MailAccount, error)
}

// Scheduler runs every enabled account, concurrently and on an interval.
type Scheduler struct {
	accounts AccountLister
	runner   Runner
	sem      *semaphore.Weighted
	logger   *slog.Logger
	// OnResult, when set, is called after each account finishes.
	OnResult func(model.RunResult, error)
}

// NewScheduler creates a scheduler running at most concurrency accounts at once.
func NewScheduler(accounts AccountLister, runner Runner, concurrency int, logger *slog.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Scheduler{
		accounts: accounts,
		runner:   runner,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		logger:   common.LoggerOrDefault(logger),
	}
}

// RunAll runs every account that is not disabled. One account failing never stops the
// others; the failures are joined into the returned error.
func (s *Scheduler) RunAll(ctx context.Context) ([]model.RunResult, error) {
	all, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	accounts := lo.Filter(all, func(a model.MailAccount, _ int) bool {
		return a.Status != model.AccountDisabled
	})

	results := make([]model.RunResult, len(accounts))
	errs := make([]error, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		g.Go(func() error {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer s.sem.Release(1)

			results[i], errs[i] = s.runner.Run(gctx, account)
			if errs[i] != nil {
				s.logger.Error("Account run failed", "account", account.ID, "error", errs[i])
			}
			if s.OnResult != nil {
				s.OnResult(results[i], errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Every calls RunAll immediately and then on each tick until ctx is canceled.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results, err := s.RunAll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("Scheduled run complete",
			"accounts", len(results),
			"transactions", lo.SumBy(results, func(r model.RunResult) int { return r.Parsed }),
			"failed", err != nil)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
