package pattern

import (
	"strings"
	"unicode"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
)

// NormalizeMerchant folds case and accents and reduces punctuation to single spaces,
// so "Café  Britt*SJO" and "CAFE BRITT SJO" compare equal.
func NormalizeMerchant(s string) string {
	s = strings.ToLower(common.FoldAccents(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return common.CollapseSpace(s)
}

// NormalizeCard keeps the last four digits of a card reference.
func NormalizeCard(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return digits
}
