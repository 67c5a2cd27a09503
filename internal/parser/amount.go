package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	errNoAmount = errors.New("no amount found")

	// Currency marker before the number: "CRC 15,000.00", "US$ 15.99", "₡4.250,00".
	amountPrefixPattern = regexp.MustCompile(`(?i)(US\$|₡|\$|€|\bCRC\b|\bUSD\b|\bEUR\b)\s?(\d[\d.,]*)`)
	// Currency marker after the number: "15.99 USD".
	amountSuffixPattern = regexp.MustCompile(`(?i)(\d[\d.,]*)\s?(CRC|USD|EUR|colones|d[oó]lares)\b`)
	bareNumberPattern   = regexp.MustCompile(`\d[\d.,]*`)
)

var currencyAliases = map[string]string{
	"₡":       "CRC",
	"CRC":     "CRC",
	"COLONES": "CRC",
	"$":       "USD",
	"US$":     "USD",
	"USD":     "USD",
	"DOLARES": "USD",
	"DÓLARES": "USD",
	"€":       "EUR",
	"EUR":     "EUR",
}

// currencyCode maps a symbol or code to its ISO 4217 code, or "" if unknown.
func currencyCode(marker string) string {
	code, ok := currencyAliases[strings.ToUpper(strings.TrimSpace(marker))]
	if !ok {
		code = strings.ToUpper(strings.TrimSpace(marker))
	}
	if money.GetCurrency(code) == nil {
		return ""
	}
	return code
}

// parseAmount finds the first amount in s. The currency is "" when s carries no
// marker; callers fall back to the template's default.
func parseAmount(s string) (decimal.Decimal, string, error) {
	if m := amountPrefixPattern.FindStringSubmatch(s); m != nil {
		amount, err := normalizeNumber(m[2])
		return amount, currencyCode(m[1]), err
	}
	if m := amountSuffixPattern.FindStringSubmatch(s); m != nil {
		amount, err := normalizeNumber(m[1])
		return amount, currencyCode(m[2]), err
	}
	if raw := bareNumberPattern.FindString(s); raw != "" {
		amount, err := normalizeNumber(raw)
		return amount, "", err
	}
	return decimal.Zero, "", errNoAmount
}

// normalizeNumber converts a locale-formatted number into a decimal.
//
// When both "." and "," appear, the last one is the decimal separator. When only one
// kind appears, it is a thousands separator if it repeats or is followed by exactly
// three digits, and the decimal separator otherwise.
func normalizeNumber(raw string) (decimal.Decimal, error) {
	raw = strings.Trim(strings.ReplaceAll(raw, " ", ""), ".,")
	if raw == "" {
		return decimal.Zero, errNoAmount
	}

	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	var decimalSep, groupSep string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalSep, groupSep = ".", ","
		} else {
			decimalSep, groupSep = ",", "."
		}
	case lastDot >= 0 || lastComma >= 0:
		sep, last := ".", lastDot
		if lastComma >= 0 {
			sep, last = ",", lastComma
		}
		if strings.Count(raw, sep) > 1 || len(raw)-last-1 == 3 {
			groupSep = sep
		} else {
			decimalSep = sep
		}
	}

	if groupSep != "" {
		raw = strings.ReplaceAll(raw, groupSep, "")
	}
	if decimalSep != "" {
		raw = strings.Replace(raw, decimalSep, ".", 1)
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

// roundToCurrency rounds amount to the currency's minor unit.
func roundToCurrency(amount decimal.Decimal, currency string) decimal.Decimal {
	fraction := 2
	if c := money.GetCurrency(currency); c != nil {
		fraction = c.Fraction
	}
	return amount.Round(int32(fraction))
}
