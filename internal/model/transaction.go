package model

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ExtractionMethod records how a candidate's fields were obtained.
type ExtractionMethod string

// Extraction methods.
const (
	ExtractionRule      ExtractionMethod = "rule"
	ExtractionInference ExtractionMethod = "fallback_inference"
)

// ReviewThreshold is the parse confidence below which a transaction is flagged for review.
const ReviewThreshold = 0.6

// CategorySource records who assigned a transaction's category.
type CategorySource string

// Category sources.
const (
	SourceNone      CategorySource = "none"
	SourceRule      CategorySource = "rule"
	SourceInference CategorySource = "fallback_inference"
	SourceManual    CategorySource = "manual"
)

// TransactionCandidate is the parser's output for one message.
type TransactionCandidate struct {
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	CardLast4   string
	Merchant    string
	Description string
	Reference   string
	Template    string
	Method      ExtractionMethod
	Confidence  float64
	DateFound   bool
}

// Money returns the candidate amount in minor units of its currency.
func (c TransactionCandidate) Money() *money.Money {
	return ToMoney(c.Amount, c.Currency)
}

// CategoryDecision is the categorization engine's verdict for one candidate.
type CategoryDecision struct {
	RuleID     *int64         `json:"rule_id,omitempty"`
	Category   string         `json:"category"`
	Source     CategorySource `json:"source"`
	Confidence float64        `json:"confidence"`
}

// Uncategorized is the decision used when no rule matches and no fallback is available.
func Uncategorized() CategoryDecision {
	return CategoryDecision{Source: SourceNone}
}

// Transaction is the durable financial record derived from one raw message.
type Transaction struct {
	Date               time.Time        `json:"date"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	RuleID             *int64           `json:"rule_id,omitempty"`
	Amount             decimal.Decimal  `json:"amount"`
	ID                 string           `json:"id"`
	AccountID          string           `json:"account_id"`
	UserID             string           `json:"user_id"`
	NaturalKey         string           `json:"natural_key"`
	Currency           string           `json:"currency"`
	CardLast4          string           `json:"card_last4"`
	Merchant           string           `json:"merchant"`
	Description        string           `json:"description"`
	Reference          string           `json:"reference"`
	ExtractionMethod   ExtractionMethod `json:"extraction_method"`
	Category           string           `json:"category"`
	CategorySource     CategorySource   `json:"category_source"`
	MessageID          int64            `json:"message_id"`
	ParseConfidence    float64          `json:"parse_confidence"`
	CategoryConfidence float64          `json:"category_confidence"`
	NeedsReview        bool             `json:"needs_review"`
}

// Money returns the transaction amount in minor units of its currency.
func (t Transaction) Money() *money.Money {
	return ToMoney(t.Amount, t.Currency)
}

// ApplyDecision copies a category decision onto the transaction.
func (t *Transaction) ApplyDecision(d CategoryDecision) {
	t.Category = d.Category
	t.CategorySource = d.Source
	t.CategoryConfidence = d.Confidence
	t.RuleID = d.RuleID
}

// NewTransaction builds a transaction from a parsed message, candidate and decision.
func NewTransaction(account MailAccount, msg RawMessage, c TransactionCandidate, d CategoryDecision) Transaction {
	txn := Transaction{
		AccountID:        account.ID,
		UserID:           account.UserID,
		MessageID:        msg.ID,
		NaturalKey:       msg.NaturalKey(),
		Amount:           c.Amount,
		Currency:         c.Currency,
		Date:             c.Date,
		CardLast4:        c.CardLast4,
		Merchant:         c.Merchant,
		Description:      c.Description,
		Reference:        c.Reference,
		ParseConfidence:  c.Confidence,
		ExtractionMethod: c.Method,
		NeedsReview:      c.Confidence < ReviewThreshold,
	}
	txn.ApplyDecision(d)
	return txn
}

// ToMoney converts a decimal amount into a go-money value using the currency's minor unit.
func ToMoney(amount decimal.Decimal, currency string) *money.Money {
	fraction := 2
	if c := money.GetCurrency(currency); c != nil {
		fraction = c.Fraction
	}
	minor := amount.Shift(int32(fraction)).Round(0).IntPart()
	return money.New(minor, currency)
}
