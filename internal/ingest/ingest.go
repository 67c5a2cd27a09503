// Package ingest pulls mailbox events into durable storage under a per-account lease.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/mailbox"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// Store is the persistence the ingestion service needs.
type Store interface {
	service.AccountStore
	service.CheckpointStore
	service.MessageStore
}

// Config holds configuration options for the ingestion service.
type Config struct {
	// LeaseTTL bounds how long a crashed worker blocks the account.
	LeaseTTL         time.Duration
	PageLimit        int
	MaxPages         int
	FailureThreshold int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LeaseTTL:         5 * time.Minute,
		PageLimit:        100,
		MaxPages:         20,
		FailureThreshold: 5,
	}
}

// Service syncs mail accounts into the raw message store.
type Service struct {
	store  Store
	logger *slog.Logger
	cfg    Config
}

// NewService creates an ingestion service. Zero config fields take their defaults.
func NewService(store Store, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaults.LeaseTTL
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaults.PageLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	return &Service{store: store, cfg: cfg, logger: common.LoggerOrDefault(logger)}
}

// Sync fetches new events for account and persists them before advancing its cursor.
//
// A crash between persisting a page and committing its cursor re-delivers that page
// on the next sync; the duplicates are skipped by the message store.
func (s *Service) Sync(ctx context.Context, account model.MailAccount, adapter mailbox.Adapter) (model.SyncResult, error) {
	if account.Status == model.AccountDisabled {
		return model.SyncResult{}, fmt.Errorf("%w: %s", common.ErrAccountDisabled, account.ID)
	}

	owner := "ingest-" + uuid.NewString()
	if err := s.store.AcquireLease(ctx, account.ID, owner, s.cfg.LeaseTTL); err != nil {
		return model.SyncResult{}, err
	}
	defer func() {
		if err := s.store.ReleaseLease(context.WithoutCancel(ctx), account.ID, owner); err != nil {
			s.logger.Warn("Failed to release sync lease", "account", account.ID, "error", err)
		}
	}()

	start := time.Now()
	result, err := s.sync(ctx, account, adapter, owner)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.recordFailure(context.WithoutCancel(ctx), account, err)
		}
		return result, err
	}

	if account.Status == model.AccountDegraded {
		if err := s.store.UpdateAccountStatus(ctx, account.ID, model.AccountActive); err != nil {
			s.logger.Warn("Failed to restore account status", "account", account.ID, "error", err)
		}
	}

	s.logger.Info("Sync complete",
		"account", account.ID,
		"provider", adapter.Provider(),
		"fetched", result.Fetched,
		"stored", result.Stored,
		"skipped", result.Skipped,
		"duration", time.Since(start))
	return result, nil
}

func (s *Service) sync(ctx context.Context, account model.MailAccount, adapter mailbox.Adapter, owner string) (model.SyncResult, error) {
	var result model.SyncResult

	checkpoint, err := s.store.LoadCheckpoint(ctx, account.ID)
	if err != nil {
		return result, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	cursor := ""
	if !checkpoint.IsBaseline() {
		cursor = checkpoint.Cursor
	}

	reset := false
	for page := 0; page < s.cfg.MaxPages; {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if page > 0 || reset {
			if err := s.renewLease(ctx, account.ID, owner); err != nil {
				return result, err
			}
		}

		batch, fetchErr := adapter.FetchBatch(ctx, cursor, s.cfg.PageLimit)
		if fetchErr == nil && batch.Expired {
			if reset {
				return result, &common.CursorExpiredError{AccountID: account.ID}
			}
			s.logger.Warn("Sync cursor expired, restarting from baseline", "account", account.ID)
			if err := s.store.ResetCheckpoint(ctx, account.ID); err != nil {
				return result, fmt.Errorf("failed to reset checkpoint: %w", err)
			}
			reset = true
			cursor = ""
			continue
		}

		// Events of a partially failed page are still persisted and committed.
		if err := s.persist(ctx, account.ID, owner, batch, &result); err != nil {
			return result, err
		}
		if batch.Cursor != "" {
			cursor = batch.Cursor
		}
		if fetchErr != nil {
			return result, fmt.Errorf("failed to fetch mailbox page: %w", fetchErr)
		}

		page++
		if !batch.More {
			break
		}
	}
	return result, nil
}

// renewLease extends owner's lease by LeaseTTL so each page gets a full TTL to be
// fetched and committed. A lease taken over by another worker is reported as lost.
func (s *Service) renewLease(ctx context.Context, accountID, owner string) error {
	err := s.store.AcquireLease(ctx, accountID, owner, s.cfg.LeaseTTL)
	if errors.Is(err, common.ErrLeaseHeld) {
		return fmt.Errorf("account %s owner %s: %w", accountID, owner, common.ErrLeaseLost)
	}
	if err != nil {
		return fmt.Errorf("failed to renew sync lease: %w", err)
	}
	return nil
}

// persist stores a page and then commits its cursor. The order is what makes a crash
// between the two steps recoverable.
func (s *Service) persist(ctx context.Context, accountID, owner string, batch mailbox.Batch, result *model.SyncResult) error {
	saved, err := s.store.SaveRawMessages(ctx, accountID, batch.Events)
	if err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	result.Add(saved)

	if batch.Cursor == "" {
		return nil
	}
	if err := s.store.CommitCheckpoint(ctx, accountID, owner, batch.Cursor, saved.Fetched); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, account model.MailAccount, cause error) {
	count, err := s.store.RecordSyncFailure(ctx, account.ID)
	if err != nil {
		s.logger.Error("Failed to record sync failure", "account", account.ID, "error", err)
		return
	}
	s.logger.Warn("Sync failed", "account", account.ID, "consecutive_failures", count, "error", cause)

	if count >= s.cfg.FailureThreshold && account.Status == model.AccountActive {
		if err := s.store.UpdateAccountStatus(ctx, account.ID, model.AccountDegraded); err != nil {
			s.logger.Error("Failed to mark account degraded", "account", account.ID, "error", err)
			return
		}
		s.logger.Warn("Account marked degraded", "account", account.ID, "consecutive_failures", count)
	}
}
