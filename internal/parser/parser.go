// Package parser turns bank notification emails into transaction candidates.
//
// Parsing runs in three stages: a template filter decides whether a message is a
// transaction alert at all, structured extraction reads its fields, and an optional
// inference fallback fills mandatory fields the template could not find.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Extractor reads alert fields with an inference model.
type Extractor interface {
	Extract(ctx context.Context, req model.ExtractionRequest) (*model.ExtractedFields, error)
}

// Parser matches messages against registered templates. It is safe for concurrent use.
type Parser struct {
	extractor Extractor
	logger    *slog.Logger
	templates []Template
	mu        sync.RWMutex
}

// New creates a parser with the bundled templates. A nil extractor disables the
// inference fallback.
func New(extractor Extractor, logger *slog.Logger) *Parser {
	return &Parser{
		extractor: extractor,
		logger:    common.LoggerOrDefault(logger),
		templates: DefaultTemplates(),
	}
}

// Register adds a template. Templates are tried in registration order.
func (p *Parser) Register(t Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates = append(p.templates, t)
}

// Templates returns the registered template names.
func (p *Parser) Templates() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.templates))
	for _, t := range p.templates {
		names = append(names, t.Name)
	}
	return names
}

func (p *Parser) match(sender, subject, text string) (Template, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.templates {
		if t.Matches(sender, subject, text) {
			return t, true
		}
	}
	return Template{}, false
}

// Parse extracts a transaction candidate from msg, reading dates in the account's
// timezone.
//
// It returns common.ErrTemplateUnrecognized for messages that are not transaction
// alerts, an *common.ExtractionIncompleteError when mandatory fields stay missing,
// and transient fallback errors unchanged so the caller can retry later.
func (p *Parser) Parse(ctx context.Context, account model.MailAccount, msg model.RawMessage) (*model.TransactionCandidate, error) {
	loc, err := account.Location()
	if err != nil {
		return nil, err
	}

	doc := readDocument(msg.Body)
	text := msg.Subject + "\n" + doc.text

	tmpl, ok := p.match(msg.Sender, msg.Subject, doc.text)
	if !ok {
		return nil, common.ErrTemplateUnrecognized
	}

	f := extract(tmpl, doc, text, loc)
	method := model.ExtractionRule
	confidence := 0.0

	if missing := f.missing(tmpl.Mandatory); len(missing) > 0 {
		p.logger.Debug("Template extraction incomplete, trying fallback",
			"template", tmpl.Name,
			"message", msg.ID,
			"missing", missing)

		f, confidence, err = p.fallback(ctx, account, tmpl, text, f, missing, loc)
		if err != nil {
			return nil, err
		}
		method = model.ExtractionInference
	}

	score := scoreConfidence(f, len(msg.Body))
	if method == model.ExtractionInference {
		score = min(score, confidence, fallbackConfidence)
	}

	date := f.date
	if !f.hasDate {
		date = msg.ReceivedAt.In(loc)
	}

	return &model.TransactionCandidate{
		Amount:     f.amount,
		Currency:   f.currency,
		Date:       date,
		DateFound:  f.hasDate,
		CardLast4:  f.card,
		Merchant:   f.merchant,
		Reference:  f.reference,
		Template:   tmpl.Name,
		Method:     method,
		Confidence: score,
	}, nil
}

// fallback asks the extractor for the fields the template missed and merges its
// answer under the template's values.
func (p *Parser) fallback(ctx context.Context, account model.MailAccount, tmpl Template, text string, f fields, missing []string, loc *time.Location) (fields, float64, error) {
	incomplete := &common.ExtractionIncompleteError{Template: tmpl.Name, Missing: missing}
	if p.extractor == nil {
		incomplete.Err = common.ErrInferenceDisabled
		return f, 0, incomplete
	}

	wanted := make([]string, 0, len(AllFields))
	for _, field := range AllFields {
		wanted = append(wanted, string(field))
	}

	res, err := p.extractor.Extract(ctx, model.ExtractionRequest{
		UserID:   account.UserID,
		Template: tmpl.Name,
		Text:     text,
		Fields:   wanted,
	})
	if err != nil {
		if common.IsTransient(err) {
			return f, 0, fmt.Errorf("failed to extract with fallback: %w", err)
		}
		incomplete.Err = err
		return f, 0, incomplete
	}

	merged := mergeExtracted(f, res, tmpl, loc)
	if still := merged.missing(tmpl.Mandatory); len(still) > 0 {
		incomplete.Missing = still
		return f, 0, incomplete
	}

	confidence := res.Confidence
	if confidence <= 0 {
		confidence = fallbackConfidence
	}
	return merged, confidence, nil
}

func mergeExtracted(f fields, res *model.ExtractedFields, tmpl Template, loc *time.Location) fields {
	if !f.hasAmount && res.Amount != "" {
		if amount, currency, err := parseAmount(res.Amount); err == nil {
			f.amount, f.hasAmount = amount, true
			if f.currency == "" {
				f.currency = currency
			}
		}
	}
	if f.currency == "" {
		f.currency = currencyCode(res.Currency)
	}
	if f.currency == "" && f.hasAmount {
		f.currency = tmpl.DefaultCurrency
	}
	if f.hasAmount {
		f.amount = roundToCurrency(f.amount, f.currency)
	}
	if f.merchant == "" {
		f.merchant = cleanMerchant(res.Merchant)
	}
	if f.card == "" {
		if all := lastFourDigits.FindAllString(res.CardLast4, -1); len(all) > 0 {
			f.card = all[len(all)-1]
		}
	}
	if f.reference == "" {
		f.reference = res.Reference
	}
	if !f.hasDate && res.Date != "" {
		if t, err := time.ParseInLocation(time.DateOnly, res.Date, loc); err == nil {
			f.date, f.hasDate = t, true
		} else {
			f.date, f.hasDate = parseDate(res.Date, loc)
		}
	}
	return f
}
