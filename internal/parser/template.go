package parser

import (
	"regexp"
	"strings"
)

// Field names a value a template extracts.
type Field string

// Extractable fields.
const (
	FieldAmount    Field = "amount"
	FieldCurrency  Field = "currency"
	FieldMerchant  Field = "merchant"
	FieldCard      Field = "card"
	FieldDate      Field = "date"
	FieldReference Field = "reference"
)

// AllFields lists every field in the order the fallback is asked for them.
var AllFields = []Field{FieldAmount, FieldCurrency, FieldMerchant, FieldCard, FieldDate, FieldReference}

// Template recognizes one family of notification emails.
//
// A message matches when it comes from one of Senders, or mentions Brand, and its
// subject or text matches Signature.
type Template struct {
	Brand     *regexp.Regexp
	Signature *regexp.Regexp
	Name      string
	// DefaultCurrency applies to amounts printed without a currency marker.
	DefaultCurrency string
	Senders         []string
	Mandatory       []Field
}

// Matches reports whether the message belongs to this template.
func (t Template) Matches(sender, subject, text string) bool {
	known := false
	lower := strings.ToLower(sender)
	for _, s := range t.Senders {
		if s != "" && strings.Contains(lower, s) {
			known = true
			break
		}
	}
	content := subject + "\n" + text
	if !known && (t.Brand == nil || !t.Brand.MatchString(content)) {
		return false
	}
	return t.Signature == nil || t.Signature.MatchString(content)
}

var defaultMandatory = []Field{FieldAmount, FieldCurrency, FieldMerchant, FieldCard}

// DefaultTemplates returns the bundled bank templates.
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:            "bac",
			Senders:         []string{"baccredomatic.com", "bac.net", "credomatic"},
			Brand:           regexp.MustCompile(`(?i)\bBAC\b|credomatic`),
			Signature:       regexp.MustCompile(`(?i)\b(compra|transacci[oó]n|monto|retiro|pago)\b`),
			DefaultCurrency: "CRC",
			Mandatory:       defaultMandatory,
		},
		{
			Name:            "promerica",
			Senders:         []string{"promerica"},
			Brand:           regexp.MustCompile(`(?i)promerica`),
			Signature:       regexp.MustCompile(`(?i)(fue utilizada|\bcompra\b|transacci[oó]n)`),
			DefaultCurrency: "CRC",
			Mandatory:       defaultMandatory,
		},
	}
}
