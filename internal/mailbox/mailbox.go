// Package mailbox adapts mailbox provider APIs to one cursor-based fetch contract.
//
// Every adapter returns events strictly after the cursor it is given, plus the cursor
// that resumes after the last event it returned. Providers deliver at least once, so
// callers must persist events idempotently before committing the returned cursor.
package mailbox

import (
	"context"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
)

// Batch is one page of mailbox events.
type Batch struct {
	// Cursor resumes after the last event in Events. Empty means no progress.
	Cursor string
	Events []model.MailEvent
	// Expired is set when the provider no longer recognizes the cursor.
	Expired bool
	// More is set when the provider has further events ready.
	More bool
}

// Adapter fetches mailbox events for one account.
//
// FetchBatch may return a non-empty Batch together with an error when a page failed
// part way through. The events in such a batch were fully fetched and its cursor
// resumes exactly after them.
type Adapter interface {
	FetchBatch(ctx context.Context, cursor string, pageLimit int) (Batch, error)
	Provider() model.ProviderKind
}

// Options tunes the adapters' baseline listing and network behaviour.
type Options struct {
	// BaselineQuery narrows the Gmail baseline listing, e.g. "newer_than:30d".
	BaselineQuery string
	Retry         service.RetryOptions
	// BaselineDays bounds the baseline window for providers without a query language.
	BaselineDays int
	// BaselineLimit caps how many messages a baseline listing returns.
	BaselineLimit int
	Timeout       time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		BaselineQuery: "newer_than:30d",
		BaselineDays:  30,
		BaselineLimit: 500,
		Timeout:       30 * time.Second,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
	}
}

// filterSenders drops events the account's sender filter rejects.
func filterSenders(account model.MailAccount, events []model.MailEvent) []model.MailEvent {
	if len(account.SenderFilter) == 0 {
		return events
	}
	kept := events[:0]
	for _, e := range events {
		if account.AcceptsSender(e.Sender) {
			kept = append(kept, e)
		}
	}
	return kept
}
