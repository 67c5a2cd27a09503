// Package model defines the core data structures for the expense tracker.
package model

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo
)

// ProviderKind identifies the mailbox protocol family of an account.
type ProviderKind string

// Supported mailbox providers.
const (
	ProviderGmail   ProviderKind = "gmail"
	ProviderOutlook ProviderKind = "outlook"
	ProviderIMAP    ProviderKind = "imap"
)

// Valid reports whether p is a known provider kind.
func (p ProviderKind) Valid() bool {
	switch p {
	case ProviderGmail, ProviderOutlook, ProviderIMAP:
		return true
	}
	return false
}

// AccountStatus is the health of a connected mailbox.
type AccountStatus string

// Account status values.
const (
	AccountActive   AccountStatus = "active"
	AccountDegraded AccountStatus = "degraded"
	AccountDisabled AccountStatus = "disabled"
)

// DefaultTimezone is used when an account has no timezone configured.
const DefaultTimezone = "America/Costa_Rica"

// MailAccount identifies one connected mailbox.
type MailAccount struct {
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Provider     ProviderKind  `json:"provider"`
	Address      string        `json:"address"`
	Label        string        `json:"label"`
	Timezone     string        `json:"timezone"`
	Status       AccountStatus `json:"status"`
	SenderFilter []string      `json:"sender_filter,omitempty"`
}

// Location returns the account's configured timezone.
func (a MailAccount) Location() (*time.Location, error) {
	tz := a.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q for account %s: %w", tz, a.ID, err)
	}
	return loc, nil
}

// AcceptsSender reports whether sender passes the account's sender filter.
// An empty filter accepts everything.
func (a MailAccount) AcceptsSender(sender string) bool {
	if len(a.SenderFilter) == 0 {
		return true
	}
	lower := strings.ToLower(sender)
	for _, s := range a.SenderFilter {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
