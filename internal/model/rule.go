package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleOrigin records how a category rule came to exist.
type RuleOrigin string

// Rule origins.
const (
	OriginSeeded    RuleOrigin = "seeded"
	OriginUser      RuleOrigin = "user"
	OriginSuggested RuleOrigin = "suggested"
)

// MatchType selects how a rule's pattern is compared with the matched field.
type MatchType string

// Match types. An empty MatchType behaves as MatchContains.
const (
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchExact      MatchType = "exact"
	MatchRegex      MatchType = "regex"
	MatchAlways     MatchType = "always"
)

// OrDefault returns t, or MatchContains when t is empty.
func (t MatchType) OrDefault() MatchType {
	if t == "" {
		return MatchContains
	}
	return t
}

// Valid reports whether t is a known match type.
func (t MatchType) Valid() bool {
	switch t.OrDefault() {
	case MatchContains, MatchStartsWith, MatchEndsWith, MatchExact, MatchRegex, MatchAlways:
		return true
	}
	return false
}

// MatchField selects which transaction text a rule's pattern is compared with.
type MatchField string

// Match fields. An empty MatchField behaves as FieldMerchant.
const (
	FieldMerchant    MatchField = "merchant"
	FieldDescription MatchField = "description"
	FieldCardLast4   MatchField = "card_last4"
	FieldAny         MatchField = "any"
)

// OrDefault returns f, or FieldMerchant when f is empty.
func (f MatchField) OrDefault() MatchField {
	if f == "" {
		return FieldMerchant
	}
	return f
}

// Valid reports whether f is a known match field.
func (f MatchField) Valid() bool {
	switch f.OrDefault() {
	case FieldMerchant, FieldDescription, FieldCardLast4, FieldAny:
		return true
	}
	return false
}

// Rule priorities. Lower numbers take precedence.
const (
	DefaultUserPriority     = 100
	DefaultSeedPriority     = 120
	SuggestedPriorityFloor  = 150
	SuggestedPriorityOffset = 10
	DefaultRuleConfidence   = 0.8
)

// CategoryRule maps a transaction predicate to a category.
type CategoryRule struct {
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	AmountMin       *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax       *decimal.Decimal `json:"amount_max,omitempty"`
	UserID          string           `json:"user_id"`
	Name            string           `json:"name"`
	MerchantPattern string           `json:"merchant_pattern"`
	CardLast4       string           `json:"card_last4,omitempty"`
	Category        string           `json:"category"`
	Origin          RuleOrigin       `json:"origin"`
	MatchType       MatchType        `json:"match_type"`
	MatchField      MatchField       `json:"match_field"`
	ID              int64            `json:"id"`
	Priority        int              `json:"priority"`
	UseCount        int              `json:"use_count"`
	Confidence      float64          `json:"confidence"`
	Enabled         bool             `json:"enabled"`
}

// Specificity counts the filter fields the rule constrains. The text pattern
// counts for every match type except MatchAlways, which matches any text.
func (r CategoryRule) Specificity() int {
	n := 0
	if r.MerchantPattern != "" && r.MatchType.OrDefault() != MatchAlways {
		n++
	}
	if r.CardLast4 != "" {
		n++
	}
	if r.AmountMin != nil || r.AmountMax != nil {
		n++
	}
	return n
}

// SuggestedPriority returns a priority that ranks below every user-authored rule.
func SuggestedPriority(rules []CategoryRule) int {
	priority := SuggestedPriorityFloor
	for _, r := range rules {
		if r.Origin != OriginUser {
			continue
		}
		if p := r.Priority + SuggestedPriorityOffset; p > priority {
			priority = p
		}
	}
	return priority
}
