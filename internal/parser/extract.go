package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/shopspring/decimal"
)

var (
	cardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\*{2,}\s*(\d{4})`),
		regexp.MustCompile(`(?i)terminaci[oó]n\s+(\d{4})`),
		regexp.MustCompile(`(?i)tarjeta\s+(?:terminada\s+en\s+)?(\d{4})`),
	}
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)n[úu]mero\s+de\s+referencia:?\s*([\w-]+)`),
		regexp.MustCompile(`(?i)referencia:?\s*([\w-]+)`),
		regexp.MustCompile(`(?i)autorizaci[oó]n:?\s*([\w-]+)`),
	}
	merchantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)comercio:?\s*([\p{L}0-9][\p{L}0-9 /'&*.-]*)`),
		regexp.MustCompile(`\b(?:en|hacia)\s+([\p{Lu}0-9][\p{L}0-9 /'&*.-]*?)(?:\s+(?:tarjeta|el|por|con|a las)\b|[,;\n]|\.\s|\.$|$)`),
	}
	// cardPhrase is removed before merchant matching so "terminada en 4321 fue
	// utilizada en X" cannot yield a merchant starting at the card digits.
	cardPhrase     = regexp.MustCompile(`(?i)(?:\bterminada\s+en|\bterminaci[oó]n|\*{2,})\s*\d{4}\b`)
	lastFourDigits = regexp.MustCompile(`\d{4}`)
	datePrefix     = regexp.MustCompile(`(?i)fecha:?\s*(.+)`)
)

// fields is the raw result of structured extraction.
type fields struct {
	date      time.Time
	amount    decimal.Decimal
	currency  string
	merchant  string
	card      string
	reference string
	hasAmount bool
	hasDate   bool
}

func (f fields) missing(mandatory []Field) []string {
	var out []string
	for _, field := range mandatory {
		if !f.has(field) {
			out = append(out, string(field))
		}
	}
	return out
}

func (f fields) has(field Field) bool {
	switch field {
	case FieldAmount:
		return f.hasAmount
	case FieldCurrency:
		return f.currency != ""
	case FieldMerchant:
		return f.merchant != ""
	case FieldCard:
		return f.card != ""
	case FieldDate:
		return f.hasDate
	case FieldReference:
		return f.reference != ""
	}
	return false
}

// extract reads every field from the table labels first and the free text second.
func extract(t Template, doc document, text string, loc *time.Location) fields {
	var f fields

	amountText := doc.label("monto", "monto total", "monto a pagar", "importe")
	if amountText == "" {
		amountText = text
	}
	if amount, currency, err := parseAmount(amountText); err == nil {
		f.amount, f.currency, f.hasAmount = amount, currency, true
		if f.currency == "" {
			f.currency = t.DefaultCurrency
		}
		f.amount = roundToCurrency(f.amount, f.currency)
	}

	f.merchant = cleanMerchant(doc.label("comercio", "comercio favorito", "establecimiento"))
	if f.merchant == "" {
		f.merchant = cleanMerchant(firstMatch(cardPhrase.ReplaceAllString(text, " "), merchantPatterns))
	}

	if v := doc.label("terminacion", "tarjeta", "numero de tarjeta", "visa", "mastercard", "amex"); v != "" {
		if all := lastFourDigits.FindAllString(v, -1); len(all) > 0 {
			f.card = all[len(all)-1]
		}
	}
	if f.card == "" {
		f.card = firstMatch(text, cardPatterns)
	}

	f.reference = doc.label("referencia", "numero de referencia", "autorizacion")
	if f.reference == "" {
		f.reference = firstMatch(text, referencePatterns)
	}

	if v := doc.label("fecha", "fecha y hora"); v != "" {
		f.date, f.hasDate = parseDate(v, loc)
	}
	if !f.hasDate {
		if m := datePrefix.FindStringSubmatch(text); m != nil {
			f.date, f.hasDate = findDate(m[1], loc)
		}
	}
	if !f.hasDate {
		f.date, f.hasDate = findDate(text, loc)
	}

	return f
}

func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func cleanMerchant(s string) string {
	return strings.Trim(common.CollapseSpace(s), " .-")
}
