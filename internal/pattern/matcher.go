package pattern

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// RuleSet is the immutable, ordered view of one user's enabled rules for a run.
type RuleSet struct {
	UserID     string
	categories map[string]string
	names      []string
	rules      []compiledRule
}

type compiledRule struct {
	re        *regexp.Regexp
	merchant  string
	matchType model.MatchType
	field     model.MatchField
	rule      model.CategoryRule
}

// compileRule normalizes the rule's pattern for its field. A regex that does not
// compile leaves re nil and the rule never matches.
func compileRule(r model.CategoryRule) compiledRule {
	cr := compiledRule{
		rule:      r,
		matchType: r.MatchType.OrDefault(),
		field:     r.MatchField.OrDefault(),
	}
	switch {
	case cr.matchType == model.MatchRegex:
		cr.re, _ = CompilePattern(r.MerchantPattern)
	case cr.field == model.FieldCardLast4:
		cr.merchant = NormalizeCard(r.MerchantPattern)
	default:
		cr.merchant = NormalizeMerchant(r.MerchantPattern)
	}
	return cr
}

// CompilePattern compiles a regex rule pattern, matched case-insensitively.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re, nil
}

// NewRuleSet orders rules by ascending priority, then by descending specificity,
// then by creation. Disabled rules are dropped.
func NewRuleSet(userID string, rules []model.CategoryRule, categories []model.Category) *RuleSet {
	rs := &RuleSet{
		UserID:     userID,
		categories: make(map[string]string, len(categories)),
	}

	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		rs.categories[strings.ToLower(c.Name)] = c.Name
		rs.names = append(rs.names, c.Name)
	}

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		rs.rules = append(rs.rules, compileRule(r))
	}

	sort.SliceStable(rs.rules, func(i, j int) bool {
		a, b := rs.rules[i].rule, rs.rules[j].rule
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
			return sa > sb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return rs
}

// LoadRuleSet reads the user's enabled rules and active categories.
func LoadRuleSet(ctx context.Context, src RuleSource, userID string) (*RuleSet, error) {
	rules, err := src.ListRules(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	categories, err := src.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	return NewRuleSet(userID, rules, categories), nil
}

// Match returns the first rule whose predicate matches the candidate.
func (rs *RuleSet) Match(c model.TransactionCandidate) (model.CategoryRule, bool) {
	card := NormalizeCard(c.CardLast4)

	for _, cr := range rs.rules {
		if cr.matches(card, c) {
			return cr.rule, true
		}
	}
	return model.CategoryRule{}, false
}

// fieldText returns the raw text a rule compares against. A candidate without a
// merchant is matched on its description.
func fieldText(field model.MatchField, c model.TransactionCandidate) string {
	switch field {
	case model.FieldDescription:
		return c.Description
	case model.FieldCardLast4:
		return c.CardLast4
	case model.FieldAny:
		return strings.TrimSpace(c.Merchant + " " + c.Description)
	default:
		if strings.TrimSpace(c.Merchant) == "" {
			return c.Description
		}
		return c.Merchant
	}
}

func (cr compiledRule) matchesText(c model.TransactionCandidate) bool {
	if cr.matchType == model.MatchAlways {
		return true
	}
	raw := fieldText(cr.field, c)

	if cr.matchType == model.MatchRegex {
		return cr.re != nil && cr.rule.MerchantPattern != "" && cr.re.MatchString(raw)
	}

	var value string
	if cr.field == model.FieldCardLast4 {
		value = NormalizeCard(raw)
	} else {
		value = NormalizeMerchant(raw)
	}
	if cr.merchant == "" {
		// A rule without a text pattern is constrained by card or amount only.
		return cr.rule.MerchantPattern == ""
	}
	if value == "" {
		return false
	}

	switch cr.matchType {
	case model.MatchStartsWith:
		return strings.HasPrefix(value, cr.merchant)
	case model.MatchEndsWith:
		return strings.HasSuffix(value, cr.merchant)
	case model.MatchExact:
		return value == cr.merchant
	case model.MatchContains:
		return strings.Contains(value, cr.merchant)
	default:
		return false
	}
}

func (cr compiledRule) matches(card string, c model.TransactionCandidate) bool {
	if !cr.matchesText(c) {
		return false
	}
	if cr.rule.CardLast4 != "" && NormalizeCard(cr.rule.CardLast4) != card {
		return false
	}
	if cr.rule.AmountMin != nil && c.Amount.LessThan(*cr.rule.AmountMin) {
		return false
	}
	if cr.rule.AmountMax != nil && c.Amount.GreaterThan(*cr.rule.AmountMax) {
		return false
	}
	return true
}

// Covering returns the first enabled rule whose predicate is exactly merchant plus card,
// or merchant alone. Only contains and exact merchant rules qualify, and rules with
// amount bounds never cover a correction.
func (rs *RuleSet) Covering(merchant, card string) (model.CategoryRule, bool) {
	merchant = NormalizeMerchant(merchant)
	card = NormalizeCard(card)

	for _, cr := range rs.rules {
		r := cr.rule
		if r.AmountMin != nil || r.AmountMax != nil {
			continue
		}
		if cr.field != model.FieldMerchant || (cr.matchType != model.MatchContains && cr.matchType != model.MatchExact) {
			continue
		}
		if cr.merchant != merchant {
			continue
		}
		if r.CardLast4 == "" || NormalizeCard(r.CardLast4) == card {
			return r, true
		}
	}
	return model.CategoryRule{}, false
}

// Category returns the canonical spelling of an active category.
func (rs *RuleSet) Category(name string) (string, bool) {
	canonical, ok := rs.categories[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Categories lists the active category names.
func (rs *RuleSet) Categories() []string {
	return rs.names
}

// Rules returns the enabled rules in evaluation order.
func (rs *RuleSet) Rules() []model.CategoryRule {
	out := make([]model.CategoryRule, len(rs.rules))
	for i, cr := range rs.rules {
		out[i] = cr.rule
	}
	return out
}
