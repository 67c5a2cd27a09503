package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a suggestion leaves a terminal state.
var ErrInvalidTransition = errors.New("invalid suggestion state transition")

// SuggestionStatus is the state of a rule suggestion.
type SuggestionStatus string

// Suggestion states.
const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// RuleSuggestion is a proposed category rule derived from manual corrections.
type RuleSuggestion struct {
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	RuleID    *int64           `json:"rule_id,omitempty"`
	UserID    string           `json:"user_id"`
	Merchant  string           `json:"merchant"`
	CardLast4 string           `json:"card_last4,omitempty"`
	Category  string           `json:"category"`
	Status    SuggestionStatus `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	ID        int64            `json:"id"`
	Evidence  int              `json:"evidence"`
}

// Accept transitions a pending suggestion to accepted, recording the rule it produced.
func (s *RuleSuggestion) Accept(ruleID int64) error {
	if s.Status != SuggestionPending {
		return fmt.Errorf("%w: cannot accept %s suggestion %d", ErrInvalidTransition, s.Status, s.ID)
	}
	s.Status = SuggestionAccepted
	s.RuleID = &ruleID
	s.Reason = fmt.Sprintf("rule %d", ruleID)
	return nil
}

// MaxReasonRunes caps the length of a rejection reason.
const MaxReasonRunes = 250

// Reject transitions a pending suggestion to rejected. Reasons longer than
// MaxReasonRunes characters are truncated.
func (s *RuleSuggestion) Reject(reason string) error {
	if s.Status != SuggestionPending {
		return fmt.Errorf("%w: cannot reject %s suggestion %d", ErrInvalidTransition, s.Status, s.ID)
	}
	if r := []rune(reason); len(r) > MaxReasonRunes {
		reason = string(r[:MaxReasonRunes])
	}
	s.Status = SuggestionRejected
	s.Reason = reason
	return nil
}

// Rule materializes the suggestion as a category rule at the given priority.
func (s RuleSuggestion) Rule(priority int) CategoryRule {
	return CategoryRule{
		UserID:          s.UserID,
		Name:            fmt.Sprintf("Suggested: %s", s.Merchant),
		MerchantPattern: s.Merchant,
		CardLast4:       s.CardLast4,
		Category:        s.Category,
		Priority:        priority,
		Confidence:      DefaultRuleConfidence,
		Enabled:         true,
		Origin:          OriginSuggested,
		MatchType:       MatchContains,
		MatchField:      FieldMerchant,
	}
}
