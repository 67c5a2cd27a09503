package model

import "time"

// SyncCheckpoint is the durable resume position of one mail account.
type SyncCheckpoint struct {
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	LeaseExpiresAt  *time.Time `json:"lease_expires_at,omitempty"`
	AccountID       string     `json:"account_id"`
	Cursor          string     `json:"cursor"`
	LeaseOwner      string     `json:"lease_owner,omitempty"`
	FailureCount    int        `json:"failure_count"`
	FetchedMessages int        `json:"fetched_messages"`
}

// IsBaseline reports whether the next sync must reseed from a full listing.
func (c *SyncCheckpoint) IsBaseline() bool {
	return c == nil || c.Cursor == ""
}

// SyncResult summarizes one ingestion pass.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// Add accumulates another page's counts.
func (r *SyncResult) Add(other SyncResult) {
	r.Fetched += other.Fetched
	r.Stored += other.Stored
	r.Skipped += other.Skipped
}
