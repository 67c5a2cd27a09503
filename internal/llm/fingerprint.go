package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// CategorizationFingerprint identifies a categorization request for the decision
// cache. Amounts are bucketed by magnitude so small price changes share a decision.
func CategorizationFingerprint(req model.CategorizationRequest) string {
	return fingerprint(
		string(model.DecisionCategorization),
		normalizeText(req.Merchant),
		amountBucket(req.Amount),
		strings.ToUpper(strings.TrimSpace(req.Currency)),
		normalizeText(req.Description),
	)
}

// ExtractionFingerprint identifies an extraction request for the decision cache.
func ExtractionFingerprint(req model.ExtractionRequest) string {
	return fingerprint(
		string(model.DecisionExtraction),
		req.Template,
		normalizeText(req.Text),
	)
}

func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalizeText(s string) string {
	return strings.ToLower(common.CollapseSpace(common.FoldAccents(s)))
}

// amountBucket reduces an amount to its leading digit and magnitude,
// so 4250.00 and 4900 both land in "4e3".
func amountBucket(amount string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return ""
	}
	whole := d.Abs().Truncate(0).String()
	if whole == "0" {
		return "0"
	}
	return whole[:1] + "e" + strconv.Itoa(len(whole)-1)
}
